package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/db"
)

var services = []string{
	"deep-tissue-massage",
	"swedish-massage",
	"acupuncture",
	"physiotherapy",
	"nutrition-consult",
	"yoga-private",
	"facial",
	"reflexology",
}

func main() {
	count := flag.Int("appointments", 2000, "number of confirmed appointments to create")
	providers := flag.Int("providers", 50, "number of distinct providers")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0, nil)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	faker := gofakeit.New(0)

	providerIDs := make([]uuid.UUID, *providers)
	for i := range providerIDs {
		providerIDs[i] = uuid.New()
	}

	if err := seedAppointments(context.Background(), pool, faker, providerIDs, *count); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedAppointments creates confirmed appointments over the next 30 days with
// a matching booking slot each. Roughly four in five are paid.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, providerIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	const batchSize = 500
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				patientID := uuid.New()
				providerID := providerIDs[faker.Number(0, len(providerIDs)-1)]

				date := today.AddDate(0, 0, faker.Number(1, 30)).Format(appointment.DateLayout)
				clock := time.Date(0, 1, 1, faker.Number(8, 18), 30*faker.Number(0, 1), 0, 0, time.UTC).Format(appointment.TimeLayout)
				price := decimal.NewFromFloat(faker.Price(40, 400)).Round(2)

				payment := appointment.PaymentPaid
				if faker.Number(1, 5) == 1 {
					payment = appointment.PaymentUnpaid
				}

				if _, err := tx.Exec(ctx, `
					INSERT INTO appointments (
						id, patient_id, provider_id, service_id, scheduled_date, scheduled_time,
						duration_minutes, service_price, status, payment_status, created_at, updated_at
					)
					VALUES ($1, $2, $3, $4, $5::date, $6::time, $7, $8, 'confirmed', $9, now(), now())
				`, id, patientID, providerID, services[faker.Number(0, len(services)-1)],
					date, clock, 30*faker.Number(1, 4), price, string(payment)); err != nil {
					return err
				}

				if _, err := tx.Exec(ctx, `
					INSERT INTO booking_slots (appointment_id, slot_date, start_time, created_at, updated_at)
					VALUES ($1, $2::date, $3::time, now(), now())
				`, id, date, clock); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("appointments seeded: %d/%d", end, count)
	}

	return nil
}
