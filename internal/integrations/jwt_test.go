package integrations

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	natsjwt "github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
)

func newTestIssuer(t *testing.T) *JWTIssuer {
	t.Helper()

	account, err := nkeys.CreateAccount()
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	seed, err := account.Seed()
	if err != nil {
		t.Fatalf("account seed: %v", err)
	}
	pub, err := account.PublicKey()
	if err != nil {
		t.Fatalf("account public key: %v", err)
	}

	issuer, err := NewJWTIssuer(string(seed), pub)
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	return issuer
}

func TestIssueIntegrationJWT(t *testing.T) {
	issuer := newTestIssuer(t)

	_, publicKey, err := GenerateUserKeyPair()
	if err != nil {
		t.Fatalf("GenerateUserKeyPair: %v", err)
	}

	token, expiresAt, err := issuer.IssueIntegrationJWT("abc123def456", publicKey, time.Hour)
	if err != nil {
		t.Fatalf("IssueIntegrationJWT: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	claims, err := natsjwt.DecodeUserClaims(token)
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if claims.Subject != publicKey {
		t.Errorf("subject = %q, want %q", claims.Subject, publicKey)
	}

	wantPub := []string{
		"track.abc123def456.ingest.>",
		"$KV.INTEGRATIONS.abc123def456",
	}
	for _, subj := range wantPub {
		if !containsSubject(claims.Permissions.Pub.Allow, subj) {
			t.Errorf("pub allow missing %q: %v", subj, claims.Permissions.Pub.Allow)
		}
	}
	if !containsSubject(claims.Permissions.Sub.Allow, "track.abc123def456.rpc") {
		t.Errorf("sub allow missing rpc subject: %v", claims.Permissions.Sub.Allow)
	}
	if containsSubject(claims.Permissions.Pub.Allow, "track.otherintegr.ingest.>") {
		t.Error("permissions leaked to another integration's subjects")
	}
}

func containsSubject(list natsjwt.StringList, subject string) bool {
	for _, s := range list {
		if s == subject {
			return true
		}
	}
	return false
}

func TestIssueIntegrationJWTRejectsBadKey(t *testing.T) {
	issuer := newTestIssuer(t)

	if _, _, err := issuer.IssueIntegrationJWT("abc123def456", "not-a-key", time.Hour); err == nil {
		t.Error("expected error for invalid public key")
	}
}

func TestVerifyNKeySignature(t *testing.T) {
	kp, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	publicKey, err := kp.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}

	nonce := "random-nonce"
	timestamp := time.Now().UnixMilli()

	sig, err := kp.Sign([]byte(fmt.Sprintf("%s:%d", nonce, timestamp)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signature := base64.StdEncoding.EncodeToString(sig)

	if !VerifyNKeySignature(publicKey, nonce, timestamp, signature) {
		t.Error("valid signature rejected")
	}
	if VerifyNKeySignature(publicKey, "other-nonce", timestamp, signature) {
		t.Error("signature accepted for a different nonce")
	}
	if VerifyNKeySignature(publicKey, nonce, timestamp+1, signature) {
		t.Error("signature accepted for a different timestamp")
	}
	if VerifyNKeySignature(publicKey, nonce, timestamp, "") {
		t.Error("empty signature accepted")
	}
}

func TestBuildCredsFile(t *testing.T) {
	creds := BuildCredsFile("the-jwt", "the-seed")
	if !strings.Contains(creds, "-----BEGIN NATS USER JWT-----\nthe-jwt\n") {
		t.Error("jwt block malformed")
	}
	if !strings.Contains(creds, "-----BEGIN USER NKEY SEED-----\nthe-seed\n") {
		t.Error("seed block malformed")
	}
}

func TestIsTimestampFresh(t *testing.T) {
	now := time.Now().UnixMilli()
	if !isTimestampFresh(now, 5*time.Minute) {
		t.Error("current timestamp should be fresh")
	}
	if isTimestampFresh(now-10*60*1000, 5*time.Minute) {
		t.Error("10-minute-old timestamp should be stale")
	}
	if isTimestampFresh(now+10*60*1000, 5*time.Minute) {
		t.Error("far-future timestamp should be rejected")
	}
}
