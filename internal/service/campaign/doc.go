// Package campaign implements campaign lifecycle management.
//
// The service layer owns the campaign state machine — prepare, start,
// auto-complete, archive, reactivate, resend, delete — and every side
// effect each transition carries on the delivery tracking rows. It depends
// on repository interfaces defined in this package and should never import
// from api/ or dispatch/.
//
// Repository implementations live in repository/postgres/.
package campaign
