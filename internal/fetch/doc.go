/*
Package fetch implements bounded, retrying HTTP access to the legal portal.

# Overview

A Fetcher wraps one http.Client with a session (cookies and headers), a
token-bucket rate limiter and a RetryPolicy. GetJSON and PostJSON decode
JSON responses into caller-supplied values.

# Fan-out

Gather runs one function per key under a semaphore and waits for all of
them. A failing key never cancels its siblings; it is reported in
Results.Failed and stays missing for the next run. Paginate builds on
Gather to fetch every page of a hit-count based listing.

Workers only return values. The caller that invoked Gather is the single
writer of any index or data file.

# Errors

  - *StatusError: non-2xx response. 5xx and 429 are retryable.
  - *PayloadError: the body could not be decoded. Never retried.
  - Timeouts and connection resets are retryable.
*/
package fetch
