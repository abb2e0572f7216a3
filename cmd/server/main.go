package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/Tasks"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/api"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/auth"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/chat"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/config"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/db"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/middleware"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/repository"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS authenticates the upgrade (token in query for browser
// clients, bearer header otherwise) and hands the connection to a
// session bound to the resolved identity.
func serveWS(resolver *auth.Resolver, registry *chat.Registry, dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential := r.URL.Query().Get("token")
		if credential == "" {
			credential = middleware.Credential(r)
		}

		userID, err := resolver.Resolve(credential)
		if err != nil {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Upgrade error: %v", err)
			return
		}

		session := chat.NewSession(registry, dispatcher, conn, userID)

		go session.WritePump()
		go session.ReadPump()
	}
}

func main() {

	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)

	if err != nil {
		log.Fatal("Failed to connect to database:", err)
		return
	}
	defer pool.Close()

	resolver := auth.NewResolver(cfg.AuthKey)
	messages := repository.NewMessagesRepo(pool)
	users := repository.NewUserRepo(pool)

	registry := chat.NewRegistry()
	dispatcher := dispatch.New(messages, users, registry)

	presence := tasks.NewPresenceFlusher(registry, users)
	cronJob := presence.Start()
	defer cronJob.Stop()

	authenticate := middleware.Authenticate(resolver)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", serveWS(resolver, registry, dispatcher))
	mux.Handle("POST /messages", authenticate(api.SendMessageHandler(dispatcher)))
	mux.Handle("GET /messages/conversation/{peerId}", authenticate(api.ConversationHandler(dispatcher)))
	mux.Handle("POST /messages/conversation/{peerId}/read", authenticate(api.MarkReadHandler(dispatcher)))

	if !cfg.IsProduction() {
		log.Println("[MAIN] Dev token mint enabled at POST /dev/token")
		mux.HandleFunc("POST /dev/token", api.DevTokenHandler(resolver))
	}

	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: mux,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("🚀 Messaging server starting on %s...\n", server.Addr)
		if err := server.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				log.Fatalf("ListenAndServe: %v", err)
			}
		}
	}()

	<-stop

	fmt.Println("\nShutdown signal received. Cleaning up...")
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	fmt.Println("Graceful shutdown complete. Goodnight!")
}
