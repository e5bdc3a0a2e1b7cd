package tools

import (
	"log"
	"net"
	"net/http"
	"time"
)

const (
	LAYOUT_INPUT = "2006-01-02T15:04"
	LAYOUT_DB    = "2006-01-02 15:04:05"
)

var privateBlocks []*net.IPNet

func init() {
	for _, block := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7"} {
		_, cidr, err := net.ParseCIDR(block)
		if err != nil {
			panic(err)
		}
		privateBlocks = append(privateBlocks, cidr)
	}
}

// Prevent out-of-network requests to the sensor controls
func CheckInNetwork(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		parsedIP := net.ParseIP(ip)
		if parsedIP == nil {
			http.Error(w, "Invalid IP address", http.StatusBadRequest)
			return
		}
		if !IsLocalAddress(parsedIP) {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func IsLocalAddress(ip net.IP) bool {
	for _, cidr := range privateBlocks {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Get the start and end dates from the request, format them for comparison with the DB.
// Form dates are read in loc, the last 8 hours are used when either is missing.
func ParseStartAndEndDate(r *http.Request, loc *time.Location, now time.Time) (string, string) {
	r.ParseForm()
	startDate := r.FormValue("start")
	endDate := r.FormValue("end")
	if startDate == "" || endDate == "" {
		return now.UTC().Add(-8 * time.Hour).Format(LAYOUT_DB), now.UTC().Format(LAYOUT_DB)
	}
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(LAYOUT_INPUT, startDate, loc)
	if err != nil {
		log.Println("Error parsing start date:", err)
	} else {
		startDate = t.UTC().Format(LAYOUT_DB)
	}

	t, err = time.ParseInLocation(LAYOUT_INPUT, endDate, loc)
	if err != nil {
		log.Println("Error parsing end date:", err)
	} else {
		endDate = t.UTC().Format(LAYOUT_DB)
	}
	return startDate, endDate
}

func StartAndEndDateToTime(startDate string, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(LAYOUT_DB, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(LAYOUT_DB, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
