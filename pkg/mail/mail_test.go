package mail

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/equitraccion/site/pkg/config"
)

// startTestSMTPServer starts a minimal SMTP server on a random port that
// accepts one session and records the DATA section.
func startTestSMTPServer(t *testing.T) (host string, port int, data func() string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		received strings.Builder
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
			case strings.HasPrefix(line, "DATA"):
				fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
				for {
					dline, derr := r.ReadString('\n')
					if derr != nil || strings.TrimSpace(dline) == "." {
						break
					}
					mu.Lock()
					received.WriteString(dline)
					mu.Unlock()
				}
				fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
			case strings.HasPrefix(line, "QUIT"):
				fmt.Fprintf(conn, "221 Bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "250 OK\r\n")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	data = func() string {
		mu.Lock()
		defer mu.Unlock()
		return received.String()
	}
	stop = func() {
		ln.Close()
		wg.Wait()
	}
	return "127.0.0.1", addr.Port, data, stop
}

func TestNewSenderDefaults(t *testing.T) {
	s := NewSender(config.Mail{Host: "smtp.example.com", Port: 587}, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, "smtp.example.com", s.GetHost())
	assert.Equal(t, 587, s.GetPort())

	impl := s.(*sender)
	assert.Equal(t, "newsletter@equitraccion.com", impl.senderAddress)
	assert.Equal(t, "Equitracción", impl.senderName)
	assert.Equal(t, 100, impl.retryBackoffMs)
	assert.Nil(t, impl.dialer.TLSConfig)

	insecure := NewSender(config.Mail{Host: "relay", Port: 25, InsecureSkipVerify: true}, zaptest.NewLogger(t).Sugar()).(*sender)
	require.NotNil(t, insecure.dialer.TLSConfig)
	assert.True(t, insecure.dialer.TLSConfig.InsecureSkipVerify)
}

func TestSender_SendHappyPath(t *testing.T) {
	host, port, data, stop := startTestSMTPServer(t)

	s := NewSender(config.Mail{Host: host, Port: port, SenderAddress: "sender@example.com"}, zaptest.NewLogger(t).Sugar())
	err := s.Send(Message{
		To:      []string{"recipient@example.com"},
		Subject: "Hola",
		HTML:    "<p>body</p>",
		Text:    "body",
	})
	require.NoError(t, err)
	stop()

	raw := data()
	assert.Contains(t, raw, "To: recipient@example.com")
	assert.Contains(t, raw, "Subject: Hola")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestSender_SendFailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewSender(config.Mail{Host: "127.0.0.1", Port: port, RetryCount: 1, RetryBackoffMs: 1}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, s.Send(testMessage("unreachable")))
}

func TestSender_SendRequiresReceivers(t *testing.T) {
	s := NewSender(config.Mail{Host: "localhost", Port: 25}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, s.Send(Message{Subject: "nobody"}))
}

func TestDisabledSender(t *testing.T) {
	s := NewDisabledSender(zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, s.Send(testMessage("x")), ErrMailDisabled)
	assert.Equal(t, "disabled", s.GetHost())
}
