// Package shared holds constants and small types used across the finance
// domain packages.
package shared

// PlatformTenant is the reserved tenant/company id representing the platform
// operator itself. Platform-level ledger accounts and audit rows are stored
// under this id instead of a real tenant.
const PlatformTenant = "PLATFORM_TENANT"

// DefaultCurrency is used when an upstream document carries no currency.
const DefaultCurrency = "TRY"
