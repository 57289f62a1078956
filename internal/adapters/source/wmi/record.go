// Package wmi reads web service counters from the local or a remote WMI provider.
package wmi

import "github.com/vshulcz/iischeck/internal/domain"

// Namespace is the WMI namespace holding the performance classes.
const Namespace = `root\cimv2`

// webService mirrors Win32_PerfFormattedData_W3SVC_WebService. Counters are
// pointers so a property the provider does not report stays nil and is left
// out of the record.
type webService struct {
	Name string

	ServiceUptime *uint32

	TotalBytesSent                      *uint64
	TotalBytesReceived                  *uint64
	TotalBytesTransferred               *uint64
	CurrentConnections                  *uint32
	TotalFilesSent                      *uint32
	TotalFilesReceived                  *uint32
	TotalConnectionAttemptsAllInstances *uint32

	TotalGetRequests     *uint32
	TotalPostRequests    *uint32
	TotalHeadRequests    *uint32
	TotalPutRequests     *uint32
	TotalDeleteRequests  *uint32
	TotalOptionsRequests *uint32
	TotalTraceRequests   *uint32

	TotalNotFoundErrors *uint32
	TotalLockedErrors   *uint32

	TotalAnonymousUsers    *uint32
	TotalNonAnonymousUsers *uint32

	TotalCGIRequests            *uint32
	TotalISAPIExtensionRequests *uint32
}

func put[T uint32 | uint64](m map[string]any, name string, v *T) {
	if v != nil {
		m[name] = *v
	}
}

func (w webService) record() domain.EntityRecord {
	m := make(map[string]any, 21)
	put(m, "ServiceUptime", w.ServiceUptime)

	put(m, "TotalBytesSent", w.TotalBytesSent)
	put(m, "TotalBytesReceived", w.TotalBytesReceived)
	put(m, "TotalBytesTransferred", w.TotalBytesTransferred)
	put(m, "CurrentConnections", w.CurrentConnections)
	put(m, "TotalFilesSent", w.TotalFilesSent)
	put(m, "TotalFilesReceived", w.TotalFilesReceived)
	put(m, "TotalConnectionAttemptsAllInstances", w.TotalConnectionAttemptsAllInstances)

	put(m, "TotalGetRequests", w.TotalGetRequests)
	put(m, "TotalPostRequests", w.TotalPostRequests)
	put(m, "TotalHeadRequests", w.TotalHeadRequests)
	put(m, "TotalPutRequests", w.TotalPutRequests)
	put(m, "TotalDeleteRequests", w.TotalDeleteRequests)
	put(m, "TotalOptionsRequests", w.TotalOptionsRequests)
	put(m, "TotalTraceRequests", w.TotalTraceRequests)

	put(m, "TotalNotFoundErrors", w.TotalNotFoundErrors)
	put(m, "TotalLockedErrors", w.TotalLockedErrors)

	put(m, "TotalAnonymousUsers", w.TotalAnonymousUsers)
	put(m, "TotalNonAnonymousUsers", w.TotalNonAnonymousUsers)

	put(m, "TotalCGIRequests", w.TotalCGIRequests)
	put(m, "TotalISAPIExtensionRequests", w.TotalISAPIExtensionRequests)
	return domain.EntityRecord{Name: w.Name, Counters: m}
}

func records(rows []webService) []domain.EntityRecord {
	out := make([]domain.EntityRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}

// connectArgs builds SWbemLocator.ConnectServer arguments. Local connections
// must not carry credentials.
func connectArgs(host, user, pass string) []any {
	if host == "" {
		host = "."
	}
	args := []any{host, Namespace}
	if user != "" && host != "." && host != "localhost" {
		args = append(args, user, pass)
	}
	return args
}
