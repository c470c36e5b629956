package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/stayhub/booking-core/internal/queue"
)

// The notifier consumes booking events from RabbitMQ and writes the
// notification and fraud logs.  It runs as its own process so broker
// hiccups or slow log IO never touch API latency.
func main() {
	_ = godotenv.Load()
	if err := queue.StartConsumer(); err != nil {
		log.Fatal(err)
	}
}
