package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// maxBodySize leaves headroom over the 50 MB resource upload cap so the
// multipart framing never trips the limit before validation does.
const maxBodySize = 60 * 1024 * 1024

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

func NewAPIServer(listenAddress string) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:   "lms-api",
			BodyLimit: maxBodySize,
		}),
		listenAddress: listenAddress,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	log.Println("Starting API Server")
	log.Printf("Listening on %s", s.listenAddress)

	return s.app.Listen(s.listenAddress)
}

// Shutdown drains in-flight requests and closes the listener.
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
