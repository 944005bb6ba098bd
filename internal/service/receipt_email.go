package service

import (
	"fmt"
	"time"

	"donation-service/internal/domain"
	"donation-service/internal/receipts"
)

func receiptEmailBody(d *domain.Donation) string {
	donorName := "dear donor"
	if !d.IsAnonymous && d.UserName.Valid {
		donorName = d.UserName.String
	}

	paidDate := time.Now().Format("2006-01-02")
	if d.PaidAt.Valid {
		paidDate = d.PaidAt.Time.Format("2006-01-02")
	}

	amount := receipts.FormatAmount(d.Amount, d.Currency)

	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #d4a373;">Thank you for your donation!</h2>

  <p>Hello %s,</p>

  <p>Thank you for your donation of <strong>%s</strong> toward %s.</p>

  <div style="background-color: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="margin-top: 0;">Donation details:</h3>
    <p><strong>Receipt number:</strong> %s</p>
    <p><strong>Amount:</strong> %s</p>
    <p><strong>Date:</strong> %s</p>
    <p><strong>For:</strong> %s</p>
    <p><strong>Organization:</strong> %s</p>
  </div>

  <p style="text-align: center;">
    <a href="%s"
       style="display: inline-block; background-color: #E87A5D; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px; font-weight: bold;">
      Download receipt
    </a>
  </p>

  <p style="color: #666; font-size: 12px; margin-top: 30px;">
    This receipt confirms the donation and complies with the requirements of the tax authority.
  </p>
</div>`,
		donorName,
		amount,
		d.StoryTitle,
		d.ReceiptNumber.String,
		amount,
		paidDate,
		d.StoryTitle,
		d.NGOName,
		d.ReceiptURL.String,
	)
}
