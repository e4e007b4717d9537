package system

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServeCmd_RequiresSecret(t *testing.T) {
	ctx, cleanup := setupTestDoctorDB(t)
	defer cleanup()

	err := (&ServeCmd{Listen: freeAddr(t), RecalcSchedule: "@daily"}).Run(ctx)
	assert.ErrorContains(t, err, "JWT secret")
}

func TestServeCmd_ShortSecret(t *testing.T) {
	ctx, cleanup := setupTestDoctorDB(t)
	defer cleanup()
	ctx.JWTSecret = "too-short"

	err := (&ServeCmd{Listen: freeAddr(t), RecalcSchedule: "@daily"}).Run(ctx)
	assert.Error(t, err)
}

func TestServeCmd_InvalidSchedule(t *testing.T) {
	ctx, cleanup := setupTestDoctorDB(t)
	defer cleanup()
	ctx.JWTSecret = testJWTSecret

	err := (&ServeCmd{Listen: freeAddr(t), RecalcSchedule: "every tuesday"}).Run(ctx)
	assert.ErrorContains(t, err, "invalid recalculation schedule")
}

func TestServeCmd_ServesUntilCancelled(t *testing.T) {
	ctx, cleanup := setupTestDoctorDB(t)
	defer cleanup()
	withDesktop(t, &fakeDesktop{})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx.Ctx = runCtx
	ctx.JWTSecret = testJWTSecret

	addr := freeAddr(t)
	done := make(chan error, 1)
	go func() {
		done <- (&ServeCmd{Listen: addr, RecalcSchedule: "@daily", RecalcOnStart: true, Desktop: true}).Run(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeCmd_AddressInUse(t *testing.T) {
	ctx, cleanup := setupTestDoctorDB(t)
	defer cleanup()
	ctx.JWTSecret = testJWTSecret

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		done <- (&ServeCmd{Listen: l.Addr().String(), RecalcSchedule: "@daily"}).Run(ctx)
	}()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "server stopped")
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not fail on a busy address")
	}
}
