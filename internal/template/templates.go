package template

import (
	"fmt"

	"github.com/notify-gateway/internal/domain"
)

func buildTable() map[domain.NotificationType]map[domain.Channel]map[domain.Role]renderFunc {
	return map[domain.NotificationType]map[domain.Channel]map[domain.Role]renderFunc{
		domain.TypeOTP: {
			domain.ChannelEmail: {
				roleDefault:      otpEmail("Your verification code"),
				domain.RoleAdmin: otpEmail("Admin verification code"),
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Your code: %s. Valid for %s. Do not share it.", d["otp_code"], valueOr(d, "expires_in", "10 minutes"))
				},
				domain.RoleAdmin: func(d map[string]string) Rendered {
					return text("Admin code: %s. Valid for %s.", d["otp_code"], valueOr(d, "expires_in", "10 minutes"))
				},
			},
			domain.ChannelWhatsApp: {
				roleDefault: func(d map[string]string) Rendered {
					return text("*Verification code*\n\nHello %s! Your code is *%s*.\n\nIt expires in %s. Do not share it with anyone.",
						valueOr(d, "name", "there"), d["otp_code"], valueOr(d, "expires_in", "10 minutes"))
				},
			},
			domain.ChannelPush: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{Subject: "Verification code", Body: fmt.Sprintf("Your code is %s", d["otp_code"])}
				},
			},
		},

		domain.TypeWelcome: {
			domain.ChannelEmail: {
				roleDefault: welcomeEmail("Your account is ready. Sign in to get started."),
				domain.RoleClient: welcomeEmail(
					"Your account is ready. Book services and manage your schedule from the app."),
				domain.RoleOwner: welcomeEmail(
					"Your owner account is active. Open the admin panel to set up your business."),
				domain.RoleEmployee: welcomeEmail(
					"Your staff account has been created. Open the panel to see your assignments."),
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Welcome! Your account is ready — open the app to get started.")
				},
			},
			domain.ChannelWhatsApp: {
				roleDefault: func(d map[string]string) Rendered {
					return text("*Welcome!*\n\nHello %s! Your account was created successfully. Open the app to get started.",
						valueOr(d, "name", "there"))
				},
			},
			domain.ChannelPush: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{Subject: "Welcome", Body: "Your account is ready."}
				},
			},
		},

		domain.TypeReminder: {
			domain.ChannelEmail: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{
						Subject: "Reminder",
						Body: emailShell("Reminder", fmt.Sprintf(
							"<p>Hello <strong>%s</strong>,</p><p>%s</p>",
							valueOr(d, "name", "there"),
							valueOr(d, "message", "Don't forget your upcoming appointment."))),
					}
				},
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Reminder: %s", valueOr(d, "message", "you have an upcoming appointment"))
				},
			},
			domain.ChannelWhatsApp: {
				roleDefault: func(d map[string]string) Rendered {
					return text("*Reminder*\n\n%s", valueOr(d, "message", "You have an upcoming appointment."))
				},
			},
			domain.ChannelPush: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{Subject: "Reminder", Body: valueOr(d, "message", "You have an upcoming appointment.")}
				},
			},
		},

		domain.TypeSecurityAlert: {
			domain.ChannelEmail: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{
						Subject: "Security alert on your account",
						Body: emailShell("Security alert", fmt.Sprintf(
							"<p>Hello <strong>%s</strong>,</p><p>%s</p><p>If this wasn't you, change your password immediately.</p>",
							valueOr(d, "name", "there"),
							valueOr(d, "message", "We detected unusual activity on your account."))),
					}
				},
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Security alert: %s", valueOr(d, "message", "unusual activity detected on your account"))
				},
			},
			domain.ChannelWhatsApp: {
				roleDefault: func(d map[string]string) Rendered {
					return text("*Security alert*\n\n%s", valueOr(d, "message", "Unusual activity was detected on your account."))
				},
			},
			domain.ChannelPush: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{Subject: "Security alert", Body: valueOr(d, "message", "Unusual activity detected.")}
				},
			},
		},

		domain.TypeAppointmentConfirmation: {
			domain.ChannelEmail: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{
						Subject: "Appointment confirmed",
						Body: emailShell("Appointment confirmed", fmt.Sprintf(
							"<p>Hello <strong>%s</strong>,</p><p>Your appointment is confirmed.</p>"+
								"<ul><li>Service: %s</li><li>Date: %s</li><li>Time: %s</li><li>Professional: %s</li></ul>"+
								"<p>Please arrive 10 minutes early.</p>",
							valueOr(d, "name", "there"), d["service"], d["date"], d["time"],
							valueOr(d, "professional", "our team"))),
					}
				},
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Appointment confirmed: %s on %s at %s", d["service"], d["date"], d["time"])
				},
			},
			domain.ChannelWhatsApp: {
				roleDefault: func(d map[string]string) Rendered {
					return text("*Appointment confirmed*\n\n%s on %s at %s.", d["service"], d["date"], d["time"])
				},
			},
		},

		domain.TypePaymentConfirmation: {
			domain.ChannelEmail: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{
						Subject: "Payment confirmed",
						Body: emailShell("Payment confirmed", fmt.Sprintf(
							"<p>Hello <strong>%s</strong>,</p><p>Your payment was processed successfully.</p>"+
								"<ul><li>Amount: %s</li><li>Method: %s</li><li>Transaction: %s</li></ul>"+
								"<p>This email serves as your receipt.</p>",
							valueOr(d, "name", "there"), d["amount"],
							valueOr(d, "payment_method", "card"), d["transaction_id"])),
					}
				},
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Payment confirmed: %s. Thank you!", d["amount"])
				},
			},
		},

		domain.TypePasswordReset: {
			domain.ChannelEmail: {
				roleDefault: func(d map[string]string) Rendered {
					return Rendered{
						Subject: "Password reset code",
						Body: emailShell("Password reset", fmt.Sprintf(
							"<p>Hello <strong>%s</strong>,</p>"+
								"<p>Use this code to reset your password:</p>"+
								`<div style="background:#F3F4F6;border-radius:8px;padding:20px;text-align:center;font-size:28px;letter-spacing:6px;font-weight:bold;">%s</div>`+
								"<p>The code expires in %s. If you didn't request a reset, ignore this email.</p>",
							valueOr(d, "name", "there"), d["otp_code"], valueOr(d, "expires_in", "10 minutes"))),
					}
				},
			},
			domain.ChannelSMS: {
				roleDefault: func(d map[string]string) Rendered {
					return text("Password reset code: %s. Valid for %s.", d["otp_code"], valueOr(d, "expires_in", "10 minutes"))
				},
			},
		},
	}
}

func text(format string, args ...interface{}) Rendered {
	return Rendered{Body: fmt.Sprintf(format, args...)}
}

func otpEmail(subject string) renderFunc {
	return func(d map[string]string) Rendered {
		inner := fmt.Sprintf(
			"<p>Hello <strong>%s</strong>,</p>"+
				"<p>Use the code below to complete your verification:</p>"+
				`<div style="background:#F3F4F6;border-radius:8px;padding:20px;text-align:center;font-size:28px;letter-spacing:6px;font-weight:bold;">%s</div>`+
				"<p>This code expires in %s. Never share it with anyone.</p>",
			valueOr(d, "name", "there"), d["otp_code"], valueOr(d, "expires_in", "10 minutes"))
		return Rendered{Subject: subject, Body: emailShell("Verification code", inner)}
	}
}

func welcomeEmail(lead string) renderFunc {
	return func(d map[string]string) Rendered {
		inner := fmt.Sprintf(
			"<p>Hello <strong>%s</strong>,</p><p>%s</p>",
			valueOr(d, "name", "there"), lead)
		return Rendered{Subject: "Welcome!", Body: emailShell("Welcome!", inner)}
	}
}

// emailShell wraps inner HTML in the shared email layout.
func emailShell(title, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Arial,sans-serif;background:#f5f5f5;margin:0;padding:20px;">
  <div style="max-width:600px;margin:0 auto;background:white;border-radius:10px;padding:30px;">
    <h1 style="font-size:24px;color:#111827;">%s</h1>
    %s
    <div style="margin-top:30px;color:#6B7280;font-size:13px;border-top:1px solid #E5E7EB;padding-top:15px;">
      <p>This is an automated message — please do not reply.</p>
    </div>
  </div>
</body>
</html>`, title, inner)
}
