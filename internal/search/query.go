package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/linnemanlabs/tcscope/internal/threatconnect"
)

// IndicatorsPath is the indicator list endpoint, relative to /api.
const IndicatorsPath = "/v3/indicators"

const sortOrder = "dateAdded ASC"

// detailFields are the nested collections phase 1 leaves out.
var detailFields = []string{"tags", "associatedGroups", "associatedIndicators"}

var tqlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// SummaryTQL returns a substring match on summary for term. The term is
// escaped so it stays a single string literal.
func SummaryTQL(term string) string {
	return `summary like "%` + tqlEscaper.Replace(term) + `%"`
}

// IDTQL returns an "id in (...)" filter for ids.
func IDTQL(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "id in (" + strings.Join(parts, ",") + ")"
}

// resolveParams builds the phase 1 request: summary match, no extra fields.
func resolveParams(term string, limit int) []threatconnect.Param {
	return []threatconnect.Param{
		{Key: "tql", Value: SummaryTQL(term)},
		{Key: "resultStart", Value: "0"},
		{Key: "resultLimit", Value: strconv.Itoa(limit)},
		{Key: "sorting", Value: sortOrder},
	}
}

// detailParams builds a phase 2 request for one chunk of ids.
func detailParams(ids []int64, limit int) []threatconnect.Param {
	if limit < len(ids) {
		limit = len(ids)
	}
	params := []threatconnect.Param{
		{Key: "tql", Value: IDTQL(ids)},
		{Key: "resultLimit", Value: strconv.Itoa(limit)},
		{Key: "sorting", Value: sortOrder},
	}
	for _, f := range detailFields {
		params = append(params, threatconnect.Param{Key: "fields", Value: f})
	}
	return params
}

var (
	sha256Re   = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	sha1Re     = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	md5Re      = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	urlRe      = regexp.MustCompile(`(?i)^(?:https?|s?ftp|tcp|file)://\S+$`)
	emailRe    = regexp.MustCompile(`(?i)^[a-z0-9!#$%&'*+/=?^_{|}~.-]+@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9]{2,}$`)
	ipv4Re     = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)$`)
	ipv6Re     = regexp.MustCompile(`^[0-9a-fA-F:]*:[0-9a-fA-F:]*$`)
	hostnameRe = regexp.MustCompile(`(?i)^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}$`)
)

// DetectType guesses the ThreatConnect indicator type of a search term.
// It returns "" for partial or free-text terms.
func DetectType(term string) string {
	switch {
	case sha256Re.MatchString(term), sha1Re.MatchString(term), md5Re.MatchString(term):
		return "File"
	case urlRe.MatchString(term):
		return "URL"
	case emailRe.MatchString(term):
		return "EmailAddress"
	case ipv4Re.MatchString(term):
		return "Address"
	case strings.Count(term, ":") >= 2 && ipv6Re.MatchString(term):
		return "Address"
	case hostnameRe.MatchString(term):
		return "Host"
	default:
		return ""
	}
}
