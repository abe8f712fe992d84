package transport

import (
	"bufio"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteLine(t *testing.T) {
	req := require.New(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	tr := NewLineTransport(server, "test-conn")

	go func() {
		_, _ = client.Write([]byte("REGISTER alice\r\n"))
	}()

	line, err := tr.ReadLine()
	req.NoError(err)
	req.Equal("REGISTER alice", line, "CR and LF are both stripped")

	done := make(chan struct{})
	go func() {
		defer close(done)
		reader := bufio.NewReader(client)
		got, err := reader.ReadString('\n')
		req.NoError(err)
		req.Equal("ACK: Registered as alice\n", got)
	}()

	req.NoError(tr.WriteLine("ACK: Registered as alice"))
	<-done
}

func TestWriteLine_ConcurrentWritersDoNotInterleave(t *testing.T) {
	req := require.New(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	tr := NewLineTransport(server, "test-conn")

	const writers = 4
	const perWriter = 25

	lines := make(chan string, writers*perWriter)
	go func() {
		reader := bufio.NewReader(client)
		for i := 0; i < writers*perWriter; i++ {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
		close(lines)
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = tr.WriteLine("MSG alice: hello")
			}
		}()
	}
	wg.Wait()

	count := 0
	for line := range lines {
		req.Equal("MSG alice: hello\n", line)
		count++
	}
	req.Equal(writers*perWriter, count)
}
