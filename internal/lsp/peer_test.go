package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakePeer plays the language server end of a pair of pipes.
type fakePeer struct {
	t   *testing.T
	in  *bufio.Reader
	out io.WriteCloser

	writeMu sync.Mutex
}

type pipeCloser struct {
	closers []io.Closer
}

func (p pipeCloser) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

// newPipePair returns the client side (reader, writer, closer) and the peer.
func newPipePair(t *testing.T) (io.Reader, io.Writer, io.Closer, *fakePeer) {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	closer := pipeCloser{closers: []io.Closer{c2sR, c2sW, s2cR, s2cW}}
	t.Cleanup(func() { closer.Close() })
	peer := &fakePeer{t: t, in: bufio.NewReader(c2sR), out: s2cW}
	return s2cR, c2sW, closer, peer
}

// read returns the next framed message the client sent.
func (p *fakePeer) read() (gjson.Result, error) {
	length := 0
	for {
		line, err := p.in.ReadString('\n')
		if err != nil {
			return gjson.Result{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			length, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return gjson.Result{}, err
			}
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(p.in, body); err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(body), nil
}

// mustRead reads one message or fails the test after a second.
func (p *fakePeer) mustRead() gjson.Result {
	p.t.Helper()
	type result struct {
		msg gjson.Result
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := p.read()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		require.NoError(p.t, r.err)
		return r.msg
	case <-time.After(time.Second):
		p.t.Fatal("timeout waiting for client message")
		return gjson.Result{}
	}
}

func (p *fakePeer) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	fmt.Fprintf(p.out, "Content-Length: %d\r\n\r\n", len(data))
	p.out.Write(data)
}

func (p *fakePeer) respond(id int64, result any) {
	p.write(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func (p *fakePeer) notify(method string, params any) {
	p.write(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

// serve answers client requests with handle until the pipes close. Every
// message, requests and notifications alike, is forwarded to seen.
func (p *fakePeer) serve(handle func(method string, params gjson.Result) any) <-chan gjson.Result {
	seen := make(chan gjson.Result, 64)
	go func() {
		defer close(seen)
		for {
			msg, err := p.read()
			if err != nil {
				return
			}
			seen <- msg
			id := msg.Get("id")
			method := msg.Get("method")
			if id.Exists() && method.Exists() {
				p.respond(id.Int(), handle(method.String(), msg.Get("params")))
			}
		}
	}()
	return seen
}
