// Package stats implements the observability endpoints supplementing
// spec.md: connection count, version, a point-in-time info snapshot, and an
// on-demand CPU profile. These mirror the original implementation's
// stats.rs, gated by their own stats token independent of the signaling
// token (spec.md §6's Security).
package stats

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/swarm-cloud/signalhub/internal/config"
	"github.com/swarm-cloud/signalhub/internal/signaling"
)

// Server answers the /count, /version, /info, and /profile routes.
type Server struct {
	Hub           *signaling.Hub
	Stats         config.Stats
	TLS           []config.TLSCert
	SecurityOn    bool
	RateLimitMax  float64
	VersionString string
	Log           *zap.Logger
}

// NewServer builds a stats Server. log may be nil (no-op logging).
func NewServer(hub *signaling.Hub, statsCfg config.Stats, tls []config.TLSCert, securityOn bool, rateLimitMax float64, versionString string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Hub:           hub,
		Stats:         statsCfg,
		TLS:           tls,
		SecurityOn:    securityOn,
		RateLimitMax:  rateLimitMax,
		VersionString: versionString,
		Log:           log.Named("stats"),
	}
}

// Register adds the four stats routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/count", s.handleCount)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/profile", s.handleProfile)
}

// checkToken mirrors the original's stats check_token: stats must be
// enabled, and if a token is configured it must match exactly.
func (s *Server) checkToken(r *http.Request) bool {
	if !s.Stats.Enable {
		return false
	}
	if s.Stats.Token == "" {
		return true
	}
	return r.URL.Query().Get("token") == s.Stats.Token
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Write([]byte(strconv.Itoa(s.Hub.Count())))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Write([]byte(s.VersionString))
}

// Info is the JSON payload served at /info.
type Info struct {
	Version            string     `json:"version"`
	CurrentConnections int        `json:"current_connections"`
	RateLimit          float64    `json:"rate_limit"`
	SecurityEnabled    bool       `json:"security_enabled"`
	CPUUsagePercent    int        `json:"cpu_usage"`
	MemoryUsedBytes    uint64     `json:"memory"`
	CertInfos          []CertInfo `json:"cert_infos,omitempty"`
}

// CertInfo is one TLS certificate's identity and expiry, parsed on demand.
type CertInfo struct {
	Name     string `json:"name"`
	ExpireAt string `json:"expire_at"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	info := Info{
		Version:            s.VersionString,
		CurrentConnections: s.Hub.Count(),
		RateLimit:          s.RateLimitMax,
		SecurityEnabled:    s.SecurityOn,
		CPUUsagePercent:    s.cpuPercent(ctx),
		MemoryUsedBytes:    s.memoryUsed(),
	}
	for _, cert := range s.TLS {
		if ci, err := parseCert(cert.Cert); err == nil {
			info.CertInfos = append(info.CertInfos, ci)
		} else {
			s.Log.Debug("cert parse failed", zap.String("file", cert.Cert), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (s *Server) cpuPercent(ctx context.Context) int {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return int(percents[0])
}

func (s *Server) memoryUsed() uint64 {
	if v, err := mem.VirtualMemory(); err == nil {
		return v.Used
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

// profileDuration is how long a /profile request captures a CPU profile
// for, matching the original's 30-second pprof sample window.
const profileDuration = 30 * time.Second

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	go s.captureProfile()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) captureProfile() {
	f, err := os.Create("cpu.pprof")
	if err != nil {
		s.Log.Warn("profile create failed", zap.Error(err))
		return
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		s.Log.Warn("profile start failed", zap.Error(err))
		return
	}
	time.Sleep(profileDuration)
	pprof.StopCPUProfile()
	s.Log.Info("profile done")
}

func parseCert(filename string) (CertInfo, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return CertInfo{}, err
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return CertInfo{}, err
	}
	return CertInfo{
		Name:     cert.Subject.CommonName,
		ExpireAt: cert.NotAfter.Format(time.RFC3339),
	}, nil
}
