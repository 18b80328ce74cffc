// Package archive stores reconciled snapshots in object storage.
//
// Each archive is a JSON document under <prefix>/<feed>/<ulid>.json. Because ULIDs
// sort lexically by time, listing a feed's prefix and sorting keys in reverse gives
// newest first without reading any object metadata. Save prunes archives beyond the
// configured retention.
package archive
