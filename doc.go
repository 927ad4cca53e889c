// Package greq is a fluent HTTP request builder.
//
// A request is described with chained With* calls and sent with Execute:
//
//	resp, err := greq.PostRequest("https://api.example.com/items").
//		WithHeader("Accept", "application/json").
//		WithJSONBody(item).
//		WithAuth(&greq.BearerAuth{Token: token}).
//		WithRetry(greq.DefaultRetryPolicy()).
//		Execute()
//
// Builder calls never fail on their own; problems are collected and returned
// by Validate or Execute as a single *Error. Responses can be decoded once as
// bytes, string, reader, JSON, XML, YAML or HTML.
//
// Authorization schemes: Basic, Bearer, arbitrary header, JWT, OAuth2
// (client credentials, password, authorization code, refresh), NTLM,
// TLS client certificates and AWS Signature Version 4.
package greq
