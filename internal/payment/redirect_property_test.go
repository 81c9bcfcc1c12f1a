package payment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/sqlite"
)

// A saved intent must read back identically after the store is closed and
// reopened, which is what a full page reload does to the browser slot.
func TestBeginPaymentSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent.db")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("loaded intent equals the one handed to BeginPayment", prop.ForAll(
		func(itemID, name, email, phone, addr, day, window, notes string, unattended bool, millis int64) bool {
			method := intent.MethodAttended
			if unattended {
				method = intent.MethodUnattended
			}
			in := intent.New("I"+itemID,
				intent.Contact{FullName: "n" + name, Email: "e" + email, PhoneNumber: "p" + phone, DeliveryAddress: "a" + addr},
				intent.Fulfillment{Method: method, Day: day, TimeWindow: window, Instructions: notes},
				time.UnixMilli(millis),
			)

			ctx := context.Background()
			db, err := sqlite.Open(ctx, path)
			if err != nil {
				return false
			}
			if _, err := NewInitiator(db.Scope(sqlite.LocalClient), "https://buy.stripe.com/x").BeginPayment(ctx, in); err != nil {
				_ = db.Close()
				return false
			}
			if err := db.Close(); err != nil {
				return false
			}

			db, err = sqlite.Open(ctx, path)
			if err != nil {
				return false
			}
			defer db.Close()
			got, ok, err := db.Scope(sqlite.LocalClient).Load(ctx)
			return err == nil && ok && got.SessionReference == in.SessionReference &&
				got.ItemID == in.ItemID && got.Contact == in.Contact &&
				got.Fulfillment == in.Fulfillment && got.CreatedAt.Equal(in.CreatedAt)
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.AlphaString(),
		gen.NumString(),
		gen.AnyString(),
		gen.OneConstOf("Mon", "Tue", "Sat"),
		gen.OneConstOf("am", "pm", "9-11"),
		gen.AnyString(),
		gen.Bool(),
		gen.Int64Range(0, 4102444800000),
	))

	properties.TestingRun(t)
}
