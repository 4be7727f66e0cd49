package middleware

import (
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"communication-service/internal/utils"

	"github.com/labstack/echo/v4"
)

// IPAllowlist guards the internal operations API. Allowed callers come
// from WHITELISTED_IP_ADDRESSES (comma separated, "*" allows everything)
// and WHITELISTED_CIDR (comma separated CIDR blocks). With neither set
// nothing gets in.
func IPAllowlist(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := utils.GetIPAddress(c.Request())
		if !ipAllowed(ip) {
			log.Printf("[ops] rejected request from %s", ip)
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
		return next(c)
	}
}

func ipAllowed(ip string) bool {
	addresses := splitList(os.Getenv("WHITELISTED_IP_ADDRESSES"))
	for _, allowed := range addresses {
		if allowed == "*" || allowed == ip {
			return true
		}
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, block := range splitList(os.Getenv("WHITELISTED_CIDR")) {
		_, network, err := net.ParseCIDR(block)
		if err != nil {
			continue
		}
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
