package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/simforge/simforge/internal/core/observability/log"
)

const quicNextProto = "simforge-quic"

// quicFrontend accepts QUIC clients speaking newline-delimited JSON
// envelopes over a single bidirectional stream.
type quicFrontend struct {
	server   *Server
	listener *quic.Listener
	logger   log.Log
	running  int32
}

func newQUICFrontend(s *Server, addr string, logger log.Log) (*quicFrontend, error) {
	listener, err := quic.ListenAddr(addr, generateTLSConfig(), &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	f := &quicFrontend{
		server:   s,
		listener: listener,
		logger:   logger.With(log.String("transport", "quic")),
		running:  1,
	}
	f.logger.Info("QUIC frontend listening", log.String("addr", listener.Addr().String()))
	return f, nil
}

func (f *quicFrontend) close() {
	atomic.StoreInt32(&f.running, 0)
	_ = f.listener.Close()
}

func (f *quicFrontend) acceptLoop(ctx context.Context) {
	for {
		conn, err := f.listener.Accept(ctx)
		if err != nil {
			if atomic.LoadInt32(&f.running) == 1 {
				f.logger.Error("QUIC accept failed", log.Error(err))
			}
			return
		}
		go f.handleConnection(ctx, conn)
	}
}

// handleConnection serves one client over its first bidirectional stream.
// QUIC has no handshake URL, so identity arrives as a hello envelope.
func (f *quicFrontend) handleConnection(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		f.logger.Warn("QUIC stream accept failed", log.Error(err))
		return
	}

	dec := json.NewDecoder(stream)
	enc := json.NewEncoder(stream)

	var hello Envelope
	if err = dec.Decode(&hello); err != nil || hello.Type != "hello" {
		_ = enc.Encode(errorEnvelope(ErrIdentityRequired.Error()))
		_ = conn.CloseWithError(0, "hello required")
		return
	}
	userID, _ := hello.Data["user"].(string)
	if userID == "" {
		_ = enc.Encode(errorEnvelope(ErrIdentityRequired.Error()))
		_ = conn.CloseWithError(0, "user required")
		return
	}
	role, _ := hello.Data["role"].(string)
	guest, _ := hello.Data["guest"].(bool)

	sess := newSession(userID, role, guest, "quic")
	sess.writeFn = enc.Encode
	sess.deadlineFn = stream.SetWriteDeadline
	sess.closeFn = func() { _ = conn.CloseWithError(0, "session closed") }

	go sess.writeLoop(f.logger)

	f.server.addSession(sess)
	defer func() {
		f.server.dropSession(sess)
		sess.close()
	}()

	_ = sess.send(outbound{Type: TypeWelcome, Data: map[string]any{
		"sessionId": sess.id,
	}})

	for {
		var env Envelope
		if err = dec.Decode(&env); err != nil {
			return
		}
		if err = sess.send(f.server.dispatch(ctx, sess, env)); err != nil {
			return
		}
	}
}

// generateTLSConfig builds a self-signed certificate for development. Real
// deployments terminate QUIC behind provisioned certificates.
func generateTLSConfig() *tls.Config {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"SimForge"},
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:    []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		panic(err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicNextProto},
		MinVersion:   tls.VersionTLS13,
	}
}
