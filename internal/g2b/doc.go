// Package g2b implements the crawl core for the G2B procurement portal: the
// logical page-state tracker, interrupt recovery, the navigator, and the
// chained fallback extraction strategies for list and detail pages.
//
// The portal exposes no API and its markup shifts between revisions, so every
// extractor here is a fallback chain: strategies are tried in order and the
// first one that yields data wins. Nothing in this package aborts a crawl;
// failures degrade to partial data or empty results.
package g2b
