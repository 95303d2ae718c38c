// Package api hosts the admin HTTP surface. Notable routes:
//   - GET /healthz for probes and GET /metrics for Prometheus scraping.
//   - POST /v1/extractions runs one URL through the pipeline synchronously.
//   - GET /v1/logs and POST /v1/logs/{id}/publish for the review queue.
//   - GET/PUT /v1/templates for extraction-template maintenance.
//   - POST /v1/runs starts a scheduled crawl run out of band.
package api
