// Package lib holds integrations that do not fit strictly into other layers.
//
// It contains background job processing (Asynq on Redis), the email client
// (Resend) and the payment gateway client (resty).
package lib
