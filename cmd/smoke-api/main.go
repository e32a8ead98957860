package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"accounter.org/internal/accounting"
	"accounter.org/internal/obs"
)

// Smoke-checks a running accounter-api: health, readiness and, when
// ACCOUNTER_SMOKE_CHARGE_ID is set, that the charge's generated ledger balances.
func main() {
	log := obs.Logger()

	base := os.Getenv("ACCOUNTER_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, path := range []string{"/healthz", "/readyz"} {
		if err := getJSON(ctx, client, base+path, nil); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("smoke check failed")
		}
	}

	if chargeID := os.Getenv("ACCOUNTER_SMOKE_CHARGE_ID"); chargeID != "" {
		var v accounting.Validation
		if err := getJSON(ctx, client, base+"/v1/charges/"+chargeID+"/ledger", &v); err != nil {
			log.Fatal().Err(err).Msg("validate ledger")
		}
		debit, credit := decimal.Zero, decimal.Zero
		for _, e := range v.Generated {
			debit = debit.Add(e.LocalCurrencyDebitAmount1)
			credit = credit.Add(e.LocalCurrencyCreditAmount1)
		}
		if !debit.Equal(credit) {
			log.Fatal().Str("debit", debit.String()).Str("credit", credit.String()).Msg("ledger conservation failed")
		}
		log.Info().
			Str("charge_id", chargeID).
			Int("entries", len(v.Generated)).
			Bool("clean", v.Diff.IsClean()).
			Bool("locked", v.Locked).
			Msg("ledger validated")
	}

	log.Info().Str("api", base).Msg("smoke OK")
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Actor", "smoke-api")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
