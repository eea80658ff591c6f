package diyredis

import (
	"bufio"
	"io"
	"log"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newTestSession wires a Session to one end of an in-memory pipe and runs
// its command loop in the background, returning the other end for the test
// to drive with raw RESP.
func newTestSession(t *testing.T) net.Conn {
	t.Helper()
	server := MakeServer()
	clientSide, serverSide := net.Pipe()

	session := &Session{
		server:   server,
		conn:     serverSide,
		valueDB:  server.dbs[0].valueDB,
		expiryDB: server.dbs[0].expiryDB,
		log:      log.New(io.Discard, "", 0),
	}
	go session.HandleCommands()
	t.Cleanup(func() { clientSide.Close() })
	return clientSide
}

func sendCommand(t *testing.T, conn net.Conn, args ...string) string {
	t.Helper()
	_, err := conn.Write(MakeArray(toAnySlice(args)))
	assert.NoError(t, err)
	reply, err := bufio.NewReader(conn).ReadString('\n')
	assert.NoError(t, err)
	return reply
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func TestBitsInsertAndGet(t *testing.T) {
	conn := newTestSession(t)

	reply := sendCommand(t, conn, "BITS.INSERT", "s", "1", "5", "9")
	assert.Equal(t, ":3\r\n", reply)

	reply = sendCommand(t, conn, "BITS.GET", "s", "5")
	assert.Equal(t, ":1\r\n", reply)

	reply = sendCommand(t, conn, "BITS.GET", "s", "6")
	assert.Equal(t, ":0\r\n", reply)
}

func TestBitsGetNegativeElementIsOutOfRange(t *testing.T) {
	conn := newTestSession(t)
	reply := sendCommand(t, conn, "BITS.GET", "s", "-1")
	assert.Equal(t, "-ERR out of range\r\n", reply)
}

func TestBitsInsertNegativeElementIsInvalid(t *testing.T) {
	conn := newTestSession(t)
	reply := sendCommand(t, conn, "BITS.INSERT", "s", "-1")
	assert.Equal(t, "-ERR invalid element\r\n", reply)
}

func TestBitsAgainstStringKeyIsWrongType(t *testing.T) {
	conn := newTestSession(t)
	sendCommand(t, conn, "SET", "s", "hello")
	reply := sendCommand(t, conn, "BITS.INSERT", "s", "1")
	assert.Contains(t, reply, "WRONGTYPE")
}

func TestBitsCountAndClear(t *testing.T) {
	conn := newTestSession(t)
	sendCommand(t, conn, "BITS.INSERT", "s", "1", "2", "3")

	reply := sendCommand(t, conn, "BITS.COUNT", "s")
	assert.Equal(t, ":3\r\n", reply)

	reply = sendCommand(t, conn, "BITS.CLEAR", "s")
	assert.Equal(t, "+OK\r\n", reply)

	reply = sendCommand(t, conn, "BITS.COUNT", "s")
	assert.Equal(t, ":0\r\n", reply)
}
