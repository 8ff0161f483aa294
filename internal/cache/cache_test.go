package cache

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemcached is a minimal in-process server speaking just enough of the
// memcached text protocol (set/delete) to exercise MemcacheText.
func fakeMemcached(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	store := map[string]string{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleFakeConn(conn, store)
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func handleFakeConn(conn net.Conn, store map[string]string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "set":
			n, _ := strconv.Atoi(fields[4])
			buf := make([]byte, n+2)
			_, _ = r.Read(buf)
			store[fields[1]] = string(buf[:n])
			conn.Write([]byte("STORED\r\n"))
		case "delete":
			if _, ok := store[fields[1]]; ok {
				delete(store, fields[1])
				conn.Write([]byte("DELETED\r\n"))
			} else {
				conn.Write([]byte("NOT_FOUND\r\n"))
			}
		}
	}
}

func TestMemcacheTextSetAndRemove(t *testing.T) {
	addr, stop := fakeMemcached(t)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c := NewMemcacheText(host, port)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "192.168.10.22", "alice", 5400*time.Second))
	require.NoError(t, c.Remove(ctx, "192.168.10.22"))
}

func TestNullCacheNeverErrors(t *testing.T) {
	var c NullCache
	assert.NoError(t, c.Set(context.Background(), "k", "v", time.Second))
	assert.NoError(t, c.Remove(context.Background(), "k"))
}
