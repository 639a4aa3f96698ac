package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	roomrepo "roombook/internal/rooms/repository"
	"roombook/pkg/config"
	"roombook/pkg/model"
)

const JobName = "seed"

// Seed rooms for local development and demos. Idempotent on name: rooms that
// already exist are skipped, not duplicated.
var seedRooms = []model.Room{
	{
		Name:      "Meeting Room 1",
		Capacity:  10,
		Location:  "1st floor",
		Amenities: []string{"whiteboard", "display"},
		IsActive:  true,
	},
	{
		Name:      "Meeting Room 2",
		Capacity:  15,
		Location:  "2nd floor",
		Amenities: []string{"whiteboard", "display", "video-conferencing"},
		IsActive:  true,
	},
	{
		Name:      "Auditorium",
		Capacity:  100,
		Location:  "ground floor",
		Amenities: []string{"stage", "projector", "sound-system"},
		IsActive:  true,
	},
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting seed job", "database", cfg.MongoDatabaseName)

	collection := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(roomrepo.CollectionName)
	created, skipped := 0, 0

	for _, room := range seedRooms {
		count, err := collection.CountDocuments(ctx, bson.M{"name": room.Name})
		if err != nil {
			cfg.Log.Fatal("Failed to check for existing room", "name", room.Name, "error", err)
		}
		if count > 0 {
			skipped++
			continue
		}

		room.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
		if _, err := collection.InsertOne(ctx, room); err != nil {
			cfg.Log.Fatal("Failed to insert room", "name", room.Name, "error", err)
		}
		cfg.Log.Info("Seeded room", "name", room.Name, "capacity", room.Capacity)
		created++
	}

	fmt.Printf("Seed completed: %d created, %d skipped.\n", created, skipped)
}
