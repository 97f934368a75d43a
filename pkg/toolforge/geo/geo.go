// Package geo resolves client IPs to ISO country codes for geo-based link
// selection, backed by a MaxMind GeoIP2 database.
package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Locator resolves an IP address to an ISO 3166-1 country code.
// Implementations return "" when the country is unknown.
type Locator interface {
	Country(ip string) string
}

// MaxMindLocator resolves countries from a local GeoIP2 database file
type MaxMindLocator struct {
	reader *geoip2.Reader
}

// Open opens a GeoIP2 country database at the given path
func Open(path string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindLocator{reader: reader}, nil
}

func (l *MaxMindLocator) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := l.reader.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the underlying database
func (l *MaxMindLocator) Close() error {
	return l.reader.Close()
}

// NoopLocator is used when no GeoIP database is configured; every lookup
// reports an unknown country.
type NoopLocator struct{}

func (NoopLocator) Country(string) string { return "" }
