package summarycache

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/models"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

var notZeroTime = validation.By(func(value interface{}) error {
	if t, ok := value.(time.Time); ok && t.IsZero() {
		return errors.New("must be set")
	}
	return nil
})

var notBlank = validation.By(func(value interface{}) error {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// validateRecord checks a decoded summary against the type it was listed
// under and the object name it was stored as. name may be empty when the
// record has not been stored yet.
func validateRecord(s models.CachedSummary, typ models.BatchType, name string) error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.PeriodKey, validation.Required, notBlank),
		validation.Field(&s.Type, validation.Required, validation.In(models.BatchWeekly, models.BatchMonthly), validation.In(typ)),
		validation.Field(&s.Summary, validation.Required, notBlank),
		validation.Field(&s.EntryCount, validation.Required, validation.Min(1)),
		validation.Field(&s.ContentHash, validation.Required, validation.Match(hashPattern)),
		validation.Field(&s.CreatedAt, notZeroTime),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidRecord, err)
	}
	if name != "" && name != ObjectName(s.Type, s.PeriodKey, s.ContentHash) {
		return fmt.Errorf("%w: name %q does not match record", apperr.ErrInvalidRecord, name)
	}
	return nil
}
