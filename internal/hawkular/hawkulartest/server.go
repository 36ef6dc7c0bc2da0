// Package hawkulartest runs an in-memory Hawkular server for tests.
package hawkulartest

import (
	"net/http/httptest"

	"go.uber.org/zap"

	"github.com/Schera-ole/hawkular-client-cli/internal/handler"
	"github.com/Schera-ole/hawkular-client-cli/internal/repository"
)

// Server is an httptest server speaking the Hawkular REST API.
type Server struct {
	*httptest.Server

	// Storage holds everything written to the server.
	Storage *repository.MemStorage
}

// NewServer starts a plain HTTP server accepting the given credentials.
func NewServer(auth handler.AuthConfig) *Server {
	storage := repository.NewMemStorage()
	return &Server{
		Server:  httptest.NewServer(handler.Router(storage, zap.NewNop().Sugar(), auth)),
		Storage: storage,
	}
}

// NewTLSServer starts a server with a self-signed certificate.
func NewTLSServer(auth handler.AuthConfig) *Server {
	storage := repository.NewMemStorage()
	return &Server{
		Server:  httptest.NewTLSServer(handler.Router(storage, zap.NewNop().Sugar(), auth)),
		Storage: storage,
	}
}
