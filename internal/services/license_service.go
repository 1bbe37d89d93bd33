// Package services orchestrates the license core for the HTTP and CLI
// surfaces: request validation, building, signing, verification walks, and
// the observability around them.
package services

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"licenser/internal/license"
)

// TracerName identifies service spans.
const TracerName = "license-service"

// Verification failure reasons reported per record.
const (
	ReasonMissingSignature  = "missing_signature"
	ReasonSignatureMismatch = "signature_mismatch"
)

// CustomerSpec is the customer portion of an issue request.
type CustomerSpec struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email" validate:"omitempty,email"`
}

// IssueRequest describes the license to build and sign. Sub-licenses are
// nested requests, signed bottom-up with the same service key before the
// parent is signed.
type IssueRequest struct {
	Kind        string            `json:"kind" yaml:"kind" validate:"omitempty,oneof=None Trial Standard Unrestricted"`
	Quantity    int               `json:"quantity" yaml:"quantity" validate:"gte=0"`
	Expiration  *time.Time        `json:"expiration,omitempty" yaml:"expiration"`
	Customer    *CustomerSpec     `json:"customer,omitempty" yaml:"customer"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes"`
	Features    map[string]string `json:"features,omitempty" yaml:"features"`
	Version     int               `json:"version" yaml:"version" validate:"gte=0"`
	Sublicenses []IssueRequest    `json:"sublicenses,omitempty" yaml:"sublicenses" validate:"dive"`
}

// IssueResponse carries the signed document and its headline fields.
type IssueResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Expiration time.Time `json:"expiration"`
	License    string    `json:"license"`
}

// RecordInfo is the structured view of a parsed record.
type RecordInfo struct {
	ID          string            `json:"id,omitempty"`
	Kind        string            `json:"kind"`
	Quantity    int               `json:"quantity,omitempty"`
	Expiration  string            `json:"expiration"`
	Expired     bool              `json:"expired"`
	Customer    *CustomerSpec     `json:"customer,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Features    map[string]string `json:"features,omitempty"`
	Version     int               `json:"version,omitempty"`
	Signed      bool              `json:"signed"`
	Sublicenses []RecordInfo      `json:"sublicenses,omitempty"`
}

// SublicenseVerification is the independent verification result of one
// child record, in document order.
type SublicenseVerification struct {
	Index  int    `json:"index"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// VerifyResult reports the top-level verification outcome plus the
// per-child outcomes. Children are walked explicitly here because the core
// never chains trust from parent to child.
type VerifyResult struct {
	Valid       bool                     `json:"valid"`
	Reason      string                   `json:"reason,omitempty"`
	Record      *RecordInfo              `json:"record"`
	Sublicenses []SublicenseVerification `json:"sublicenses,omitempty"`
}

// LicenseService is the surface consumed by the HTTP handlers.
type LicenseService interface {
	Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error)
	Verify(ctx context.Context, licenseText string) (*VerifyResult, error)
	Inspect(ctx context.Context, licenseText string) (*RecordInfo, error)
}

// ErrIssuingDisabled is returned by Issue when the service was started
// without a private key.
var ErrIssuingDisabled = errors.New("services: no private key configured, issuing is disabled")

type licenseService struct {
	signer   license.Signer
	priv     crypto.PrivateKey
	pub      crypto.PublicKey
	logger   *slog.Logger
	metrics  *ServiceMetrics
	validate *validator.Validate
	now      func() time.Time
}

// NewLicenseService builds the service. priv may be nil for a verify-only
// deployment; metrics may be nil when observability is not initialized.
func NewLicenseService(signer license.Signer, priv crypto.PrivateKey, pub crypto.PublicKey, logger *slog.Logger, metrics *ServiceMetrics) LicenseService {
	return &licenseService{
		signer:   signer,
		priv:     priv,
		pub:      pub,
		logger:   logger.With(slog.String("component", "license_service")),
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *licenseService) Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "license.issue",
		trace.WithAttributes(
			attribute.String("license.kind", req.Kind),
			attribute.Int("license.quantity", req.Quantity),
			attribute.Int("license.sublicenses", len(req.Sublicenses)),
		),
	)
	defer span.End()

	start := s.now()
	resp, err := s.issue(ctx, req)
	s.recordIssue(ctx, s.now().Sub(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "license issue failed",
			slog.String("kind", req.Kind),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	span.SetStatus(codes.Ok, "license issued")
	s.logger.InfoContext(ctx, "license issued",
		slog.String("license_id", resp.ID),
		slog.String("kind", resp.Kind),
		slog.Int("size_bytes", len(resp.License)),
	)
	return resp, nil
}

func (s *licenseService) issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	if s.priv == nil {
		return nil, ErrIssuingDisabled
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("services: invalid issue request: %w", err)
	}

	rec, err := s.buildAndSign(req)
	if err != nil {
		return nil, err
	}
	return &IssueResponse{
		ID:         rec.ID().String(),
		Kind:       rec.Kind().String(),
		Expiration: rec.Expiration(),
		License:    rec.String(),
	}, nil
}

// buildAndSign assembles one record from its request, children first. Every
// child is a complete, independently signed record before the parent embeds
// it.
func (s *licenseService) buildAndSign(req *IssueRequest) (*license.Record, error) {
	b := license.New().ID(uuid.New())
	if req.Kind != "" {
		kind, ok := license.ParseKind(req.Kind)
		if !ok {
			return nil, fmt.Errorf("services: unknown license kind %q", req.Kind)
		}
		b.Kind(kind)
	}
	b.Quantity(req.Quantity)
	if req.Expiration != nil {
		b.ExpiresAt(*req.Expiration)
	}
	if req.Customer != nil {
		b.LicensedTo(req.Customer.Name, req.Customer.Email)
	}
	b.Attributes(req.Attributes)
	b.Features(req.Features)
	b.Version(req.Version)

	for i := range req.Sublicenses {
		child, err := s.buildAndSign(&req.Sublicenses[i])
		if err != nil {
			return nil, fmt.Errorf("services: sublicense %d: %w", i, err)
		}
		b.Sublicense(child)
	}

	return b.CreateAndSign(s.signer, s.priv)
}

func (s *licenseService) Verify(ctx context.Context, licenseText string) (*VerifyResult, error) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "license.verify",
		trace.WithAttributes(attribute.Int("license.size_bytes", len(licenseText))),
	)
	defer span.End()

	start := s.now()
	result, err := s.verify(ctx, licenseText)
	s.recordVerify(ctx, s.now().Sub(start), err, result)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("license.valid", result.Valid))
	span.SetStatus(codes.Ok, "verification completed")
	return result, nil
}

func (s *licenseService) verify(ctx context.Context, licenseText string) (*VerifyResult, error) {
	rec, err := license.ParseString(licenseText)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Record: s.recordInfo(rec)}
	result.Valid, result.Reason, err = s.verifyOne(rec)
	if err != nil {
		return nil, err
	}

	for i, sub := range rec.Sublicenses() {
		valid, reason, err := s.verifyOne(sub)
		if err != nil {
			return nil, err
		}
		result.Sublicenses = append(result.Sublicenses, SublicenseVerification{
			Index:  i,
			Valid:  valid,
			Reason: reason,
		})
	}

	s.logger.InfoContext(ctx, "license verified",
		slog.String("license_id", result.Record.ID),
		slog.Bool("valid", result.Valid),
		slog.Int("sublicenses", len(result.Sublicenses)),
	)
	return result, nil
}

func (s *licenseService) verifyOne(rec *license.Record) (bool, string, error) {
	ok, err := rec.Verify(s.signer, s.pub)
	switch {
	case errors.Is(err, license.ErrMissingSignature), errors.Is(err, license.ErrMissingRawBody):
		return false, ReasonMissingSignature, nil
	case err != nil:
		return false, "", err
	case !ok:
		return false, ReasonSignatureMismatch, nil
	}
	return true, "", nil
}

func (s *licenseService) Inspect(ctx context.Context, licenseText string) (*RecordInfo, error) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "license.inspect")
	defer span.End()

	rec, err := license.ParseString(licenseText)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ParseFailures.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "inspect completed")
	return s.recordInfo(rec), nil
}

func (s *licenseService) recordInfo(rec *license.Record) *RecordInfo {
	info := &RecordInfo{
		Kind:       rec.Kind().String(),
		Quantity:   rec.Quantity(),
		Expiration: rec.Expiration().Format(time.RFC3339),
		Expired:    rec.Expired(s.now()),
		Attributes: rec.Attributes(),
		Features:   rec.Features(),
		Version:    rec.Version(),
		Signed:     rec.Signed(),
	}
	if rec.ID() != uuid.Nil {
		info.ID = rec.ID().String()
	}
	if c := rec.Customer(); c != nil {
		info.Customer = &CustomerSpec{Name: c.Name, Email: c.Email}
	}
	for _, sub := range rec.Sublicenses() {
		info.Sublicenses = append(info.Sublicenses, *s.recordInfo(sub))
	}
	return info
}

func (s *licenseService) recordIssue(ctx context.Context, d time.Duration, success bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.IssueAttempts.Add(ctx, 1)
	s.metrics.IssueDuration.Record(ctx, d.Seconds())
	if !success {
		s.metrics.IssueFailures.Add(ctx, 1)
	}
}

func (s *licenseService) recordVerify(ctx context.Context, d time.Duration, err error, result *VerifyResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.VerifyAttempts.Add(ctx, 1)
	s.metrics.VerifyDuration.Record(ctx, d.Seconds())
	switch {
	case err != nil:
		s.metrics.VerifyFailures.Add(ctx, 1)
	case !result.Valid:
		s.metrics.VerifyMismatches.Add(ctx, 1)
	}
}
