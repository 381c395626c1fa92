// Package extract holds the text and HTML heuristics shared by the site
// extractors: whitespace normalization, date and currency parsing, and
// heading-delimited section lookup over goquery documents.
//
// Every helper degrades to a zero value with ok=false on malformed input;
// none of them return errors or panic.
package extract
