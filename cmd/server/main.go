package main

import (
	"roombook/internal/events"
	reservationhandler "roombook/internal/reservations/handler"
	reservationrepo "roombook/internal/reservations/repository"
	reservationservice "roombook/internal/reservations/service"
	reservationvalidator "roombook/internal/reservations/validator"
	roomhandler "roombook/internal/rooms/handler"
	roomrepo "roombook/internal/rooms/repository"
	roomservice "roombook/internal/rooms/service"
	roomvalidator "roombook/internal/rooms/validator"
	"roombook/pkg/app"
	"roombook/pkg/auth"
	"roombook/pkg/config"
	"roombook/pkg/contracts"
	"roombook/pkg/kafka"
)

const ServiceName = "roombook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting roombook service")

	publisher, closeProducer := initPublisher(cfg)
	defer closeProducer()

	handlers := initHandlers(cfg, publisher)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTokenTTL)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(tokens, handlers...)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, publisher events.Publisher) []contracts.Handler {
	roomRepository := roomrepo.NewMongoRoomRepository(cfg)
	roomSvc := roomservice.NewRoomService(
		roomRepository,
		roomvalidator.NewRoomValidator(cfg.Log),
		cfg,
	)

	reservationSvc := reservationservice.NewReservationService(
		reservationrepo.NewMongoReservationRepository(cfg),
		reservationrepo.NewReservationLockRepository(cfg),
		roomRepository,
		reservationvalidator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return []contracts.Handler{
		reservationhandler.NewReservationHandler(reservationSvc, cfg.Log),
		roomhandler.NewRoomHandler(roomSvc, cfg.Log),
	}
}

// initPublisher wires the Kafka producer when brokers are configured and a
// no-op otherwise, so a single-node deployment needs no broker at all.
func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("No Kafka brokers configured, reservation events disabled")
		return events.NewNoopPublisher(), func() {}
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.ReservationEventTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Kafka producer initialized",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.ReservationEventTopic,
	)
	return events.NewKafkaPublisher(producer), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}
