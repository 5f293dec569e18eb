package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeAccessor) Close() error { return nil }

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	resource := "projects/sneakers/secrets/device-signing/versions/latest"
	client.values[resource] = "remote-value"

	resolver, err := NewResolver(ctx, withAccessor(client), WithProject("sneakers"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	defer resolver.Close()

	for i := 0; i < 2; i++ {
		got, err := resolver.ResolveSecret(ctx, "secret://device-signing")
		if err != nil {
			t.Fatalf("ResolveSecret: %v", err)
		}
		if got != "remote-value" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if client.calls[resource] != 1 {
		t.Fatalf("expected a single remote call, got %d", client.calls[resource])
	}
}

func TestResolveHonoursVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	client.values["projects/other/secrets/web-api-key/versions/3"] = "pinned"

	resolver, _ := NewResolver(ctx, withAccessor(client), WithProject("sneakers"), WithFallbackFile(""))
	got, err := resolver.ResolveSecret(ctx, "secret://web-api-key?version=3&project=other")
	if err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	if got != "pinned" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestResolveFallsBackWhenDenied(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("# local\nsm://device-signing=local-value\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	client := newFakeAccessor()
	client.errs["projects/sneakers/secrets/device-signing/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	resolver, _ := NewResolver(ctx, withAccessor(client), WithProject("sneakers"), WithFallbackFile(path))
	got, err := resolver.ResolveSecret(ctx, "secret://device-signing")
	if err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	if got != "local-value" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}

func TestResolveSurfacesNonFallbackErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	client.errs["projects/sneakers/secrets/device-signing/versions/latest"] = status.Error(codes.InvalidArgument, "bad")

	resolver, _ := NewResolver(ctx, withAccessor(client), WithProject("sneakers"), WithFallbackFile(""))
	if _, err := resolver.ResolveSecret(ctx, "secret://device-signing"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseReference(t *testing.T) {
	if _, err := parseReference("http://nope"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := parseReference("secret://"); err == nil {
		t.Fatalf("expected missing name error")
	}
	ref, err := parseReference("secret://firebase/web-api-key")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ref.name != "firebase/web-api-key" || ref.version != "latest" {
		t.Fatalf("unexpected reference %+v", ref)
	}
}
