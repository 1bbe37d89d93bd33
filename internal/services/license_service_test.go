package services

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenser/internal/license"
	"licenser/internal/security"
)

func testService(t *testing.T, priv crypto.PrivateKey, pub crypto.PublicKey) LicenseService {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewLicenseService(security.NewECDSASigner(), priv, pub, logger, nil)
}

func testKeyPair(t *testing.T) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	return priv, &priv.PublicKey
}

func TestIssueAndVerify(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)
	ctx := context.Background()

	exp := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	resp, err := svc.Issue(ctx, &IssueRequest{
		Kind:       "Standard",
		Quantity:   10,
		Expiration: &exp,
		Customer:   &CustomerSpec{Name: "Acme Corp", Email: "ops@acme.example"},
		Features:   map[string]string{"reporting": "yes"},
		Attributes: map[string]string{"channel": "direct"},
		Version:    2,
		Sublicenses: []IssueRequest{
			{Kind: "Trial", Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "Standard", resp.Kind)
	assert.Equal(t, exp, resp.Expiration)

	result, err := svc.Verify(ctx, resp.License)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.Record)
	assert.Equal(t, resp.ID, result.Record.ID)
	assert.True(t, result.Record.Signed)
	assert.False(t, result.Record.Expired)

	require.Len(t, result.Sublicenses, 1)
	assert.True(t, result.Sublicenses[0].Valid)
	assert.Equal(t, 0, result.Sublicenses[0].Index)
}

func TestIssueValidatesRequest(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *IssueRequest
	}{
		{"unknown kind", &IssueRequest{Kind: "Platinum"}},
		{"bad customer email", &IssueRequest{Customer: &CustomerSpec{Name: "x", Email: "not-an-email"}}},
		{"negative quantity", &IssueRequest{Quantity: -1}},
		{"negative version", &IssueRequest{Version: -3}},
		{"invalid nested sublicense", &IssueRequest{Sublicenses: []IssueRequest{{Kind: "Bogus"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestIssueDisabledWithoutPrivateKey(t *testing.T) {
	_, pub := testKeyPair(t)
	svc := testService(t, nil, pub)

	_, err := svc.Issue(context.Background(), &IssueRequest{Kind: "Trial"})
	assert.ErrorIs(t, err, ErrIssuingDisabled)
}

func TestVerifyMalformedDocument(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)

	_, err := svc.Verify(context.Background(), "<License><Quantity>lots</Quantity></License>")
	var malformed *license.MalformedRecordError
	assert.True(t, errors.As(err, &malformed))
}

func TestVerifyWrongKeyReportsMismatch(t *testing.T) {
	priv, _ := testKeyPair(t)
	_, otherPub := testKeyPair(t)

	issuer := testService(t, priv, &priv.PublicKey)
	resp, err := issuer.Issue(context.Background(), &IssueRequest{Kind: "Standard"})
	require.NoError(t, err)

	verifier := testService(t, nil, otherPub)
	result, err := verifier.Verify(context.Background(), resp.License)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonSignatureMismatch, result.Reason)
}

func TestVerifyUnsignedParentWithSignedChild(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)
	signer := security.NewECDSASigner()

	child, err := license.New().
		ID(uuid.New()).
		Kind(license.KindTrial).
		CreateAndSign(signer, priv)
	require.NoError(t, err)

	parent := license.New().
		ID(uuid.New()).
		Kind(license.KindStandard).
		Sublicense(child).
		Create()

	result, err := svc.Verify(context.Background(), parent.String())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonMissingSignature, result.Reason)

	require.Len(t, result.Sublicenses, 1)
	assert.True(t, result.Sublicenses[0].Valid, "child signature is independent of the parent")
}

func TestInspect(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)
	ctx := context.Background()

	exp := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	resp, err := svc.Issue(ctx, &IssueRequest{
		Kind:       "Trial",
		Quantity:   5,
		Expiration: &exp,
		Customer:   &CustomerSpec{Name: "Jo"},
		Features:   map[string]string{"export": "csv"},
	})
	require.NoError(t, err)

	info, err := svc.Inspect(ctx, resp.License)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, info.ID)
	assert.Equal(t, "Trial", info.Kind)
	assert.Equal(t, 5, info.Quantity)
	assert.True(t, info.Expired, "2001 expiration is in the past")
	assert.True(t, info.Signed)
	require.NotNil(t, info.Customer)
	assert.Equal(t, "Jo", info.Customer.Name)
	assert.Equal(t, map[string]string{"export": "csv"}, info.Features)
}

func TestInspectMalformed(t *testing.T) {
	priv, pub := testKeyPair(t)
	svc := testService(t, priv, pub)

	_, err := svc.Inspect(context.Background(), "not xml at all")
	assert.Error(t, err)
}
