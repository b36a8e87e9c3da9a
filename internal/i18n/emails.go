package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	Greeting     string
	NoNameFiller string

	VerificationSubject string
	VerificationText    string
	VerificationHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string

	DisableTwoFactorSubject string
	DisableTwoFactorText    string
	DisableTwoFactorHTML    string

	RegenerateCodesSubject string
	RegenerateCodesText    string
	RegenerateCodesHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		Greeting:     "Hi {name},",
		NoNameFiller: "there",

		VerificationSubject: "Verify your email",
		VerificationText:    "{greeting}\n\nYour verification code is {code}. It is valid for {minutes} minutes.",
		VerificationHTML: "<p>{greeting}</p>" +
			"<p>Use the code below to verify your email address.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>The code expires in {minutes} minutes.</p>" +
			"<p>If you did not create an account, you can ignore this email.</p>",

		PasswordResetSubject: "Reset your password",
		PasswordResetText:    "{greeting}\n\nReset your password: {link}\nThe link expires in {minutes} minutes.\nIf you did not request this, ignore this email.",
		PasswordResetHTML: "<p>{greeting}</p>" +
			"<p>Click the link to reset your password.</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {minutes} minutes.</p>" +
			"<p>If you did not request this, ignore this email.</p>",

		DisableTwoFactorSubject: "Code to disable two-factor authentication",
		DisableTwoFactorText:    "{greeting}\n\nYour code to disable two-factor authentication is {code} (valid for {minutes} minutes).\nIf you did not request this, secure your account now.",
		DisableTwoFactorHTML: "<p>{greeting}</p>" +
			"<p>Your code to disable two-factor authentication is <strong>{code}</strong> (valid for {minutes} minutes).</p>" +
			"<p>If you did not request this, secure your account now.</p>",

		RegenerateCodesSubject: "Code to regenerate your backup codes",
		RegenerateCodesText:    "{greeting}\n\nYour code to regenerate your backup codes is {code} (valid for {minutes} minutes).\nYour current backup codes stop working once new ones are created.",
		RegenerateCodesHTML: "<p>{greeting}</p>" +
			"<p>Your code to regenerate your backup codes is <strong>{code}</strong> (valid for {minutes} minutes).</p>" +
			"<p>Your current backup codes stop working once new ones are created.</p>",
	},
	"de": {
		Greeting:     "Hallo {name},",
		NoNameFiller: "zusammen",

		VerificationSubject: "E-Mail verifizieren",
		VerificationText:    "{greeting}\n\nIhr Verifizierungscode ist {code}. Er ist {minutes} Minuten gültig.",
		VerificationHTML: "<p>{greeting}</p>" +
			"<p>Verwenden Sie den untenstehenden Code, um Ihre E-Mail zu verifizieren.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>Der Code läuft in {minutes} Minuten ab.</p>" +
			"<p>Wenn Sie kein Konto erstellt haben, können Sie diese E-Mail ignorieren.</p>",

		PasswordResetSubject: "Passwort zurücksetzen",
		PasswordResetText:    "{greeting}\n\nSetzen Sie Ihr Passwort zurück: {link}\nDer Link ist {minutes} Minuten gültig.\nWenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		PasswordResetHTML: "<p>{greeting}</p>" +
			"<p>Klicken Sie auf den Link, um Ihr Passwort zurückzusetzen.</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link ist {minutes} Minuten gültig.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",

		DisableTwoFactorSubject: "Code zum Deaktivieren der Zwei-Faktor-Authentifizierung",
		DisableTwoFactorText:    "{greeting}\n\nIhr Code zum Deaktivieren der Zwei-Faktor-Authentifizierung ist {code} (gültig für {minutes} Minuten).\nWenn Sie das nicht waren, sichern Sie Ihr Konto sofort.",
		DisableTwoFactorHTML: "<p>{greeting}</p>" +
			"<p>Ihr Code zum Deaktivieren der Zwei-Faktor-Authentifizierung ist <strong>{code}</strong> (gültig für {minutes} Minuten).</p>" +
			"<p>Wenn Sie das nicht waren, sichern Sie Ihr Konto sofort.</p>",

		RegenerateCodesSubject: "Code zum Erneuern Ihrer Backup-Codes",
		RegenerateCodesText:    "{greeting}\n\nIhr Code zum Erneuern Ihrer Backup-Codes ist {code} (gültig für {minutes} Minuten).\nIhre bisherigen Backup-Codes werden danach ungültig.",
		RegenerateCodesHTML: "<p>{greeting}</p>" +
			"<p>Ihr Code zum Erneuern Ihrer Backup-Codes ist <strong>{code}</strong> (gültig für {minutes} Minuten).</p>" +
			"<p>Ihre bisherigen Backup-Codes werden danach ungültig.</p>",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

// render fills both bodies. Values are escaped for the HTML body only.
func render(templates emailStrings, subject, text, htmlBody string, values map[string]string) EmailContent {
	name := strings.TrimSpace(values["name"])
	if name == "" {
		name = templates.NoNameFiller
	}

	escaped := make(map[string]string, len(values)+1)
	for key, value := range values {
		escaped[key] = html.EscapeString(value)
	}
	values["greeting"] = renderTemplate(templates.Greeting, map[string]string{"name": name})
	escaped["greeting"] = renderTemplate(templates.Greeting, map[string]string{"name": html.EscapeString(name)})
	return EmailContent{
		Subject: subject,
		Text:    renderTemplate(text, values),
		HTML:    renderTemplate(htmlBody, escaped),
	}
}

func VerificationEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t, t.VerificationSubject, t.VerificationText, t.VerificationHTML, map[string]string{
		"name":    name,
		"code":    code,
		"minutes": strconv.Itoa(minutes),
	})
}

func PasswordResetEmail(locale, name, link string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t, t.PasswordResetSubject, t.PasswordResetText, t.PasswordResetHTML, map[string]string{
		"name":    name,
		"link":    link,
		"minutes": strconv.Itoa(minutes),
	})
}

func DisableTwoFactorEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t, t.DisableTwoFactorSubject, t.DisableTwoFactorText, t.DisableTwoFactorHTML, map[string]string{
		"name":    name,
		"code":    code,
		"minutes": strconv.Itoa(minutes),
	})
}

func RegenerateBackupCodesEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t, t.RegenerateCodesSubject, t.RegenerateCodesText, t.RegenerateCodesHTML, map[string]string{
		"name":    name,
		"code":    code,
		"minutes": strconv.Itoa(minutes),
	})
}
