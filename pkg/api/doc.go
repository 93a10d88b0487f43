// Package api defines the wire-level types shared by the apprendo
// security gateway: the error taxonomy every pipeline stage resolves
// into, the uniform error envelope, and the public projections of
// domain records that may cross the HTTP boundary.
package api
