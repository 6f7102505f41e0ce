package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// wsConn 每次写入前设置截止时间，卡住的对端在 writeWait 后写入失败
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

// NewConn 包装 websocket 连接供 Hub 使用
func NewConn(conn *websocket.Conn, writeWait time.Duration) Conn {
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	return &wsConn{conn: conn, writeWait: writeWait}
}

func (c *wsConn) WriteJSON(v interface{}) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Close 先发送正常关闭帧，客户端据此区分任务结束和断线
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
