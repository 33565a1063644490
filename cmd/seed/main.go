package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/scheduling-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	orgID := uuid.New()
	log.Printf("seeding org %s", orgID)

	providerIDs, err := seedProviders(context.Background(), pool, orgID, 10)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, orgID, providerIDs); err != nil {
		log.Fatalf("seed availability: %v", err)
	}
	if err := seedPreferences(context.Background(), pool, orgID, providerIDs); err != nil {
		log.Fatalf("seed preferences: %v", err)
	}

	patientIDs, err := seedPatients(context.Background(), pool, orgID, 200)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, orgID, providerIDs, patientIDs, 300); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatología",
		"Cardiología",
		"Medicina General",
		"Ortopedia",
		"Endocrinología",
		"Pediatría",
		"Psiquiatría",
		"Oftalmología",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[i%len(specialties)]
		_, err := pool.Exec(ctx, `
			INSERT INTO providers (id, org_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, orgID, "Dr. "+gofakeit.Name(), specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedAvailability(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, providers []uuid.UUID) error {
	log.Printf("seeding availability rules for %d providers", len(providers))

	for _, pid := range providers {
		// Weekday mornings plus afternoons, 30 minute granularity.
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := pool.Exec(ctx, `
				INSERT INTO availability_rules (id, org_id, provider_id, weekday, start_time, end_time, slot_granularity_minutes, timezone)
				VALUES ($1, $2, $3, $4, '09:00', '13:00', 30, 'America/Mexico_City'),
				       ($5, $2, $3, $4, '15:00', '19:00', 30, 'America/Mexico_City')
			`, uuid.New(), orgID, pid, weekday, uuid.New())
			if err != nil {
				return err
			}
		}

		// One blocked lunch-adjacent slot next Monday.
		nextMonday := nextWeekday(time.Now(), time.Monday)
		_, err := pool.Exec(ctx, `
			INSERT INTO date_overrides (id, org_id, provider_id, date, kind, start_time, end_time)
			VALUES ($1, $2, $3, $4, 'block', '12:00', '13:00')
		`, uuid.New(), orgID, pid, nextMonday.Format("2006-01-02"))
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPreferences(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, providers []uuid.UUID) error {
	log.Printf("seeding reminder preferences for %d providers", len(providers))

	for _, pid := range providers {
		_, err := pool.Exec(ctx, `
			INSERT INTO reminder_preferences (org_id, provider_id, timezone, window_start, window_end, days_of_week, channel_priority, max_retries, retry_backoff_minutes)
			VALUES ($1, $2, 'America/Mexico_City', '09:00', '20:00', '{1,2,3,4,5,6}', '{whatsapp,sms}', 3, 30)
		`, orgID, pid)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, org_id, name, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, orgID, gofakeit.Name(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}

		// Roughly a quarter of patients carry an elevated no-show score.
		if gofakeit.Number(0, 3) == 0 {
			_, err := pool.Exec(ctx, `
				INSERT INTO no_show_scores (org_id, patient_id, score, updated_at)
				VALUES ($1, $2, $3, now())
			`, orgID, id, gofakeit.Number(70, 95))
			if err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID, providers, patients []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	for i := 0; i < count; i++ {
		provider := providers[gofakeit.Number(0, len(providers)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]

		daysAhead := gofakeit.Number(1, 14)
		hour := gofakeit.Number(9, 18)
		start := time.Now().AddDate(0, 0, daysAhead).Truncate(time.Hour)
		start = time.Date(start.Year(), start.Month(), start.Day(), hour, 0, 0, 0, start.Location())

		_, err := pool.Exec(ctx, `
			INSERT INTO appointments (id, org_id, provider_id, patient_id, starts_at, ends_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', now(), now())
		`, uuid.New(), orgID, provider, patient, start, start.Add(30*time.Minute))
		if err != nil {
			return err
		}
	}
	return nil
}

func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	d := from
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	if d.Equal(from) {
		d = d.AddDate(0, 0, 7)
	}
	return d
}
