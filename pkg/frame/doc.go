// Package frame defines the CAN/CAN-FD frame value type used throughout
// bcm-go.
//
// A Frame is a plain value: identifier, flavor and payload. The flavor
// discriminant replaces the two pointer-aliased C struct layouts
// (can_frame / canfd_frame) with a single explicit type; payload bounds
// are enforced at construction time, never by silent truncation.
package frame
