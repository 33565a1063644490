package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// simulate fires concurrent delivery-run triggers against a live API server
// and reports how the due set was split between them. With the run lock and
// the per item claim in place, every reminder id must appear in at most one
// trigger's outcome list per attempt slot.
type simConfig struct {
	apiBaseURL string
	token      string
	triggers   int
	rounds     int
	pause      time.Duration
}

type runSummary struct {
	Processed int `json:"processed"`
	Delivered int `json:"delivered"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Outcomes  []struct {
		ReminderID string `json:"reminder_id"`
		Status     string `json:"status"`
		Attempt    int    `json:"attempt"`
	} `json:"outcomes"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := simConfig{
		apiBaseURL: envOr("API_BASE_URL", "http://127.0.0.1:8080"),
		token:      os.Getenv("INTERNAL_RUN_TOKEN"),
		triggers:   envInt("SIM_TRIGGERS", 5),
		rounds:     envInt("SIM_ROUNDS", 3),
		pause:      time.Duration(envInt("SIM_PAUSE_SECONDS", 2)) * time.Second,
	}
	if cfg.token == "" {
		log.Fatal("INTERNAL_RUN_TOKEN is required")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	for round := 1; round <= cfg.rounds; round++ {
		log.Printf("round %d: firing %d concurrent run triggers", round, cfg.triggers)

		var wg sync.WaitGroup
		summaries := make([]*runSummary, cfg.triggers)

		for i := 0; i < cfg.triggers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				s, err := triggerRun(client, cfg)
				if err != nil {
					log.Printf("trigger %d: %v", idx, err)
					return
				}
				summaries[idx] = s
			}(i)
		}
		wg.Wait()

		report(summaries)
		time.Sleep(cfg.pause)
	}
}

func triggerRun(client *http.Client, cfg simConfig) (*runSummary, error) {
	req, err := http.NewRequest(http.MethodPost, cfg.apiBaseURL+"/reminders/run", bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Internal-Token", cfg.token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var s runSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func report(summaries []*runSummary) {
	seen := map[string]int{}
	totalProcessed := 0

	for _, s := range summaries {
		if s == nil {
			continue
		}
		totalProcessed += s.Processed
		for _, o := range s.Outcomes {
			if o.Status == "scheduled" || o.Status == "delivered" || o.Status == "failed" {
				seen[o.ReminderID+"#"+strconv.Itoa(o.Attempt)]++
			}
		}
	}

	duplicates := 0
	for _, n := range seen {
		if n > 1 {
			duplicates++
		}
	}

	log.Printf("processed=%d distinct_attempts=%d duplicate_attempts=%d", totalProcessed, len(seen), duplicates)
	if duplicates > 0 {
		log.Printf("WARNING: %d attempt slots were executed more than once", duplicates)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
