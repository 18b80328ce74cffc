// Package utils provides small conversion and text helpers shared across packages.
package utils
