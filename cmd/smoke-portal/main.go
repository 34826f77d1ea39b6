package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type decision struct {
	Action   string `json:"action"`
	TenantID string `json:"tenant_id"`
	Location string `json:"location"`
}

func main() {
	base := getenv("PORTAL_SMOKE_HTTP", "http://localhost:8080")
	grpcAddr := getenv("PORTAL_SMOKE_GRPC", "localhost:9090")
	user := getenv("PORTAL_SMOKE_USER", "u-ana")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial portal-api grpc at %s: %v", grpcAddr, err)
	}
	defer conn.Close()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "portal-api"})
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("portal-api not serving: %s", hc.GetStatus())
	}

	var tok struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
	}
	call(ctx, http.MethodPost, base+"/v1/auth/token", "", map[string]string{"user": user}, &tok)
	bearer := "Bearer " + tok.Token

	var d decision
	call(ctx, http.MethodPost, base+"/v1/session/navigate", bearer, map[string]string{"path": "/tenant/acme"}, &d)
	if d.Action != "set_lock" || d.TenantID != "acme" {
		log.Fatalf("first tenant entry: %+v", d)
	}
	call(ctx, http.MethodPost, base+"/v1/session/navigate", bearer, map[string]string{"path": "/tenant/globex"}, &d)
	if d.Action != "redirect" || d.Location != "/tenant/acme" {
		log.Fatalf("cross tenant navigation: %+v", d)
	}

	var view struct {
		UserID           string   `json:"user_id"`
		EffectiveRoleIDs []string `json:"effective_role_ids"`
	}
	call(ctx, http.MethodGet, base+"/v1/users/me/access?tenant_id=acme", bearer, nil, &view)
	if view.UserID != user {
		log.Fatalf("access view for %q, want %q", view.UserID, user)
	}

	call(ctx, http.MethodPost, base+"/v1/auth/logout", bearer, nil, nil)

	fmt.Printf("portal-api smoke test passed: session=%s roles=%v\n", tok.SessionID, view.EffectiveRoleIDs)
}

func call(ctx context.Context, method, url, bearer string, body, out any) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", url, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &payload)
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", url, err)
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
