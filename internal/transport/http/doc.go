// Package http holds the HTTP handlers for the stress test API. Handlers only
// parse requests, call the service layer and render results; every error goes
// through errors.ErrorHandler and reaches the client as RFC 7807 problem
// details.
//
// Routes, relative to /api:
//
//	GET    /health, /health/ready, /health/live, /version
//	GET    /banks, /banks/{name}
//	GET    /scenarios?start=&horizon=&severity=&persistence=
//	GET    /data
//	POST   /runs
//	GET    /runs/latest
//	GET    /runs/latest/results?scenario=&bank=
//	GET    /runs/latest/trough, /runs/latest/breaches, /runs/latest/losses
//	GET    /runs/latest/loss-rates/{scenario}
//	DELETE /runs/{id}
package http
