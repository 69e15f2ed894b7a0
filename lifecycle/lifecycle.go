/*
Package lifecycle implements the asset workflows around the depreciation
engine: registration, updates, transfers, disposal and maintenance.

PURPOSE:
  Each service reads an asset, applies one validated transition from the
  asset package, and writes it back with a version check. Multi-record
  changes (completing a transfer, deleting an asset with a pending
  transfer check) happen inside one store transaction.

SERVICES:
  Registry:    create, get, list, update, delete, register, valuation
  Transfers:   initiate, complete, reject, cancel, history
  Disposals:   dispose, loss-on-disposal report
  Maintenance: record, history, due list

None of these touch the depreciation ledger.
*/
package lifecycle

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/logger"
)

// Option customizes a service.
type Option func(*base)

// WithClock overrides the time source.
func WithClock(c asset.Clock) Option { return func(b *base) { b.clock = c } }

// WithIDs overrides ID generation.
func WithIDs(fn func() string) Option { return func(b *base) { b.newID = fn } }

// WithLogger sets the logger. Services log nothing by default.
func WithLogger(l *zap.Logger) Option { return func(b *base) { b.log = logger.OrNop(l) } }

// base carries what every service shares.
type base struct {
	store asset.TxStore
	log   *zap.Logger
	clock asset.Clock
	newID func() string
}

func newBase(store asset.TxStore, name string, opts []Option) base {
	b := base{
		store: store,
		log:   zap.NewNop(),
		clock: asset.SystemClock,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(&b)
	}
	b.log = b.log.Named(name)
	return b
}

// =============================================================================
// VALIDATION
// =============================================================================

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct maps validator failures onto asset.ValidationError so
// callers see one error family. The first failing field is reported.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &asset.ValidationError{Field: fe.Field(), Message: msg}
	}
	return &asset.ValidationError{Field: "request", Message: err.Error()}
}
