// Package cloudflare implements a provider adapter for Cloudflare Workers AI
// text generation models.
//
// Requests go to {base}/{account}/ai/run/@cf/{model}. The adapter reads
// CLOUDFLARE_API_TOKEN and CLOUDFLARE_ACCOUNT_ID when they are not given
// explicitly, and CLOUDFLARE_BASE_URL to override the API endpoint.
package cloudflare
