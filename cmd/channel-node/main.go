// Package main runs a channel node: gossip transport, local archive,
// and the HTTP API for one topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ZentaChain/zentalk-channel/pkg/api"
	"github.com/ZentaChain/zentalk-channel/pkg/chat"
	"github.com/ZentaChain/zentalk-channel/pkg/encryption"
	"github.com/ZentaChain/zentalk-channel/pkg/store"
	"github.com/ZentaChain/zentalk-channel/pkg/transport"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 9000, "P2P node port")
	apiPort := flag.Int("api-port", 8080, "HTTP API port")
	topic := flag.String("topic", "channel/general", "Channel topic to join")
	dataDir := flag.String("data", "./channel-data", "Data directory for the archive")
	bootstrap := flag.String("bootstrap", "", "Comma-separated bootstrap peer addresses")
	enableCORS := flag.Bool("cors", true, "Enable CORS headers")
	rateLimit := flag.Int("rate-limit", 100, "Rate limit (requests per minute)")
	noArchive := flag.Bool("no-archive", false, "Run without local persistence")

	flag.Parse()

	fmt.Println("🚀 ZenTalk Channel Node")
	fmt.Println("=======================")
	fmt.Println()

	ctx := context.Background()

	// Create the gossip node
	fmt.Printf("📡 Starting P2P node on port %d...\n", *port)
	nodeConfig := &transport.Config{
		Port: *port,
	}
	if *bootstrap != "" {
		nodeConfig.BootstrapPeers = strings.Split(*bootstrap, ",")
	}

	node, err := transport.NewPubSubNode(ctx, nodeConfig)
	if err != nil {
		log.Fatalf("Failed to create P2P node: %v", err)
	}

	// Open the local archive unless persistence is disabled
	var archive *store.Archive
	if !*noArchive {
		if err := os.MkdirAll(*dataDir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		archivePath := filepath.Join(*dataDir, "archive.db")
		archive, err = store.NewArchive(archivePath)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		node.AttachHistory(archive)
	}

	// Assemble the channel client
	client := chat.NewClient(*topic, node, encryption.NewOverlay())
	if archive != nil {
		client.AttachArchive(archive)
	}

	// Join the topic so the timeline fills from the start
	if _, err := client.Subscribe(ctx, nil); err != nil {
		log.Printf("⚠️  Initial subscribe failed: %v", err)
	}

	// Display node info
	fmt.Println()
	fmt.Println("Node Information:")
	fmt.Printf("  ID: %s\n", node.ID())
	fmt.Printf("  Topic: %s\n", *topic)
	fmt.Printf("  Addresses:\n")
	for _, addr := range node.Addresses() {
		fmt.Printf("    %s\n", addr)
	}
	if archive != nil {
		fmt.Printf("  Archive: %s/archive.db\n", *dataDir)
	}
	fmt.Printf("  Peers: %d\n", node.PeerCount())
	fmt.Println()

	// Create HTTP API server
	apiConfig := &api.Config{
		Port:       *apiPort,
		EnableCORS: *enableCORS,
		RateLimit:  *rateLimit,
	}

	apiServer := api.NewServer(client, archive, apiConfig)

	apiCtx, apiCancel := context.WithCancel(context.Background())
	defer apiCancel()

	go func() {
		if err := apiServer.Start(apiCtx); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	fmt.Println("✅ Node is ready!")
	fmt.Println()
	fmt.Println("API Endpoints:")
	fmt.Printf("  POST   http://localhost:%d/api/v1/messages\n", *apiPort)
	fmt.Printf("  GET    http://localhost:%d/api/v1/messages\n", *apiPort)
	fmt.Printf("  GET    http://localhost:%d/api/v1/history\n", *apiPort)
	fmt.Printf("  POST   http://localhost:%d/api/v1/subscription\n", *apiPort)
	fmt.Printf("  POST   http://localhost:%d/api/v1/encryption/toggle\n", *apiPort)
	fmt.Printf("  GET    http://localhost:%d/api/v1/status\n", *apiPort)
	fmt.Printf("  GET    http://localhost:%d/health\n", *apiPort)
	fmt.Println()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh

	fmt.Println("\n🛑 Shutting down...")

	apiCancel()

	if err := client.UnsubscribeAll(); err != nil {
		fmt.Printf("Error closing subscriptions: %v\n", err)
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			fmt.Printf("Error closing archive: %v\n", err)
		}
	}
	if err := node.Close(); err != nil {
		fmt.Printf("Error closing node: %v\n", err)
	}

	fmt.Println("👋 Goodbye!")
}
