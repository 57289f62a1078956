package collector

import "github.com/vshulcz/iischeck/internal/domain"

// WebServiceClass is the provider class holding per-site web service counters.
const WebServiceClass = "Win32_PerfFormattedData_W3SVC_WebService"

// IISMetrics is the fixed counter catalog. Order is submission order.
var IISMetrics = []domain.Mapping{
	{Name: "iis.uptime", Kind: domain.Gauge, Counter: "ServiceUptime"},

	// Network
	{Name: "iis.net.bytes_sent", Kind: domain.Rate, Counter: "TotalBytesSent"},
	{Name: "iis.net.bytes_rcvd", Kind: domain.Rate, Counter: "TotalBytesReceived"},
	{Name: "iis.net.bytes_total", Kind: domain.Rate, Counter: "TotalBytesTransferred"},
	{Name: "iis.net.num_connections", Kind: domain.Gauge, Counter: "CurrentConnections"},
	{Name: "iis.net.files_sent", Kind: domain.Rate, Counter: "TotalFilesSent"},
	{Name: "iis.net.files_rcvd", Kind: domain.Rate, Counter: "TotalFilesReceived"},
	{Name: "iis.net.connection_attempts", Kind: domain.Rate, Counter: "TotalConnectionAttemptsAllInstances"},

	// HTTP methods
	{Name: "iis.httpd_request_method.get", Kind: domain.Rate, Counter: "TotalGetRequests"},
	{Name: "iis.httpd_request_method.post", Kind: domain.Rate, Counter: "TotalPostRequests"},
	{Name: "iis.httpd_request_method.head", Kind: domain.Rate, Counter: "TotalHeadRequests"},
	{Name: "iis.httpd_request_method.put", Kind: domain.Rate, Counter: "TotalPutRequests"},
	{Name: "iis.httpd_request_method.delete", Kind: domain.Rate, Counter: "TotalDeleteRequests"},
	{Name: "iis.httpd_request_method.options", Kind: domain.Rate, Counter: "TotalOptionsRequests"},
	{Name: "iis.httpd_request_method.trace", Kind: domain.Rate, Counter: "TotalTraceRequests"},

	// Errors
	{Name: "iis.errors.not_found", Kind: domain.Rate, Counter: "TotalNotFoundErrors"},
	{Name: "iis.errors.locked", Kind: domain.Rate, Counter: "TotalLockedErrors"},

	// Users
	{Name: "iis.users.anon", Kind: domain.Rate, Counter: "TotalAnonymousUsers"},
	{Name: "iis.users.nonanon", Kind: domain.Rate, Counter: "TotalNonAnonymousUsers"},

	// Requests
	{Name: "iis.requests.cgi", Kind: domain.Rate, Counter: "TotalCGIRequests"},
	{Name: "iis.requests.isapi", Kind: domain.Rate, Counter: "TotalISAPIExtensionRequests"},
}

// Counters lists the source counter names of a table, in table order.
func Counters(table []domain.Mapping) []string {
	out := make([]string, 0, len(table))
	for _, m := range table {
		out = append(out, m.Counter)
	}
	return out
}
