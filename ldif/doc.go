// Package ldif parses and re-serializes LDIF records for rule-driven
// rewriting.
//
// A stream is split into chunks by Reader, one chunk per record, with LDIF
// line folding already undone. Parse classifies every line of a chunk into one
// of four kinds:
//
//	# comment                 -> KindComment, kept verbatim
//	cn: Jane Doe              -> KindAttribute
//	jpegPhoto:: /9j/4AAQ...   -> KindBase64 (or KindAttribute when the payload is text)
//	anything else             -> KindPlain, kept verbatim
//
// Base64 payloads go through Codec: printable UTF-8 text is unwrapped to a
// plain attribute so later rules can match it, anything else keeps its
// encoded form and is written back byte for byte.
//
// Record.MapLines and Record.FilterLines are the only ways rules change a
// record. Both drop lines the same way and log every drop to the record's
// audit Log.
package ldif
