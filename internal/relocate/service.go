// internal/relocate/service.go
package relocate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/internal/metrics"
	"scanbridge/pkg/tenants"
)

// Find constants for the backend's trial-record template: barcodes match on
// the Result.Code field.
const (
	recordTemplate = "AC_Study_LabTrial"
	changedFrom    = "2022-03-03T00:00:00Z"
	changedTo      = "2025-12-31T23:59:59Z"
)

var (
	ErrNoBarcodes = errors.New("no barcodes provided")
	ErrNoLocation = errors.New("no location id provided")
)

// ItemFailure records why one barcode could not be relocated.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result is the per-item partition of a batch relocation. Status is
// "success" when every item succeeded, otherwise "partial".
type Result struct {
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	Successful []string      `json:"successful"`
	Failed     []ItemFailure `json:"failed"`
}

// TokenSource is the slice of the token manager the service needs.
type TokenSource interface {
	Token(ctx context.Context, tenantID string) (string, error)
}

// Backend is the slice of the platform client the service needs.
type Backend interface {
	FindRecords(ctx context.Context, url, token string, q backend.FilterQuery) ([]backend.RawRecord, error)
	UpdateRecord(ctx context.Context, url, token string, upd backend.RecordUpdate) error
}

// Service resolves scanned barcodes to backend records and moves them to a
// location/sublocation, isolating failures per barcode.
type Service struct {
	reg    tenants.Registry
	tokens TokenSource
	client Backend
	log    *zap.SugaredLogger
}

func NewService(reg tenants.Registry, tokens TokenSource, client Backend, log *zap.SugaredLogger) *Service {
	return &Service{reg: reg, tokens: tokens, client: client, log: log}
}

// Relocate processes each barcode independently and always returns a
// {successful, failed} partition once authentication has succeeded.
func (s *Service) Relocate(ctx context.Context, tenantID string, barcodes []string, locationID, sublocationID string) (Result, error) {
	if len(barcodes) == 0 {
		return Result{}, ErrNoBarcodes
	}
	if locationID == "" {
		return Result{}, ErrNoLocation
	}

	t, err := s.reg.Resolve(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}

	tok, err := s.tokens.Token(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("authenticate tenant %s: %w", tenantID, err)
	}

	res := Result{Successful: []string{}, Failed: []ItemFailure{}}
	for _, barcode := range barcodes {
		if err := s.relocateOne(ctx, t, tok, barcode, locationID, sublocationID); err != nil {
			s.log.Warnw("barcode relocation failed", "tenant", tenantID, "barcode", barcode, "err", err)
			res.Failed = append(res.Failed, ItemFailure{ID: barcode, Error: err.Error()})
			metrics.RelocateItems.WithLabelValues("failed").Inc()
			continue
		}
		res.Successful = append(res.Successful, barcode)
		metrics.RelocateItems.WithLabelValues("success").Inc()
	}

	res.Status = "success"
	if len(res.Failed) > 0 {
		res.Status = "partial"
	}
	res.Message = fmt.Sprintf("Updated %d of %d records in tenant %s", len(res.Successful), len(barcodes), t.DisplayName)
	return res, nil
}

func (s *Service) relocateOne(ctx context.Context, t tenants.Resolved, tok, barcode, locationID, sublocationID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process barcode: %v", r)
		}
	}()

	recordID, err := s.findRecordID(ctx, t, tok, barcode)
	if err != nil {
		return err
	}

	upd := backend.RecordUpdate{
		RecordID: recordID,
		Fields:   []backend.FieldUpdate{fieldUpdate("Location", locationID)},
	}
	if sublocationID != "" {
		upd.Fields = append(upd.Fields, fieldUpdate("Sublocation", sublocationID))
	}

	if err := s.client.UpdateRecord(ctx, t.Endpoints.UpdateURL, tok, upd); err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("API returned status code %d", se.Status)
		}
		return err
	}
	return nil
}

// findRecordID resolves a barcode to the backend record id via the find
// endpoint. Zero matches or an unusable id are item-level failures.
func (s *Service) findRecordID(ctx context.Context, t tenants.Resolved, tok, barcode string) (int64, error) {
	q := backend.FilterQuery{
		QueryTerm:                fmt.Sprintf("Result.Code == '%s'", barcode),
		RecordTemplateIdentifier: recordTemplate,
		LastChangedOnFrom:        changedFrom,
		LastChangedOnTo:          changedTo,
	}
	recs, err := s.client.FindRecords(ctx, t.Endpoints.FindRecordsURL, tok, q)
	if err != nil {
		return 0, fmt.Errorf("Record not found for this barcode in tenant %s", t.DisplayName)
	}
	if len(recs) == 0 {
		return 0, fmt.Errorf("Record not found for this barcode in tenant %s", t.DisplayName)
	}
	id := recs[0]["recordId"]
	if id == nil {
		id = recs[0]["id"]
	}
	n, err := toInt64(id)
	if err != nil {
		return 0, fmt.Errorf("Record not found for this barcode in tenant %s", t.DisplayName)
	}
	return n, nil
}

func fieldUpdate(identifier, value string) backend.FieldUpdate {
	return backend.FieldUpdate{
		Identifier: identifier,
		Rows: []backend.FieldRow{{
			Row:    0,
			Values: []backend.FieldValue{{Value: value, ValuePreview: ""}},
		}},
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unusable record id %v", v)
	}
}
