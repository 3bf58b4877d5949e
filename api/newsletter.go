package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"inkwell/captcha"
	"inkwell/database"
	"inkwell/templates"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func subscribeNewsletter(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email        string `json:"email"`
		CaptchaToken string `json:"captchaToken"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	v := newValidator()
	v.checkEmail(email, "email")
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	if verifier.Enabled() {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		err = verifier.Verify(r.Context(), input.CaptchaToken, ip)
		if errors.Is(err, captcha.ErrRejected) {
			respondError(w, http.StatusBadRequest, "captcha verification failed")
			return
		}
		if err != nil {
			respondServerError(w, r, "Verifying captcha", err)
			return
		}
	}

	db := database.GetDB()

	var sub database.Subscriber
	err := db.Where("email = ?", email).First(&sub).Error
	switch {
	case err == nil:
		if sub.IsActive {
			respondMessage(w, http.StatusOK, map[string]any{"subscriber": sub}, "already subscribed")
			return
		}
		// Unsubscribed addresses come back on the same row.
		sub.IsActive = true
		sub.SubscribedAt = time.Now()
		if err := db.Save(&sub).Error; err != nil {
			respondServerError(w, r, "Reactivating subscriber", err)
			return
		}
		respondMessage(w, http.StatusOK, map[string]any{"subscriber": sub}, "subscription reactivated")

	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = database.Subscriber{Email: email, IsActive: true, SubscribedAt: time.Now()}
		err := db.Create(&sub).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondMessage(w, http.StatusOK, nil, "already subscribed")
			return
		}
		if err != nil {
			respondServerError(w, r, "Creating subscriber", err)
			return
		}
		respondMessage(w, http.StatusCreated, map[string]any{"subscriber": sub}, "subscribed to the newsletter")

	default:
		respondServerError(w, r, "Fetching subscriber", err)
	}
}

// unsubscribePage is the landing page behind the link in newsletter emails.
func unsubscribePage(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, http.StatusOK, templates.UnsubscribeForm(conf.SiteName, r.URL.Query().Get("email")))
}

// unsubscribeNewsletter takes JSON from the SPA and form posts from the
// landing page. Unknown addresses get the same answer as known ones so the
// endpoint can't be used to probe the subscriber list.
func unsubscribeNewsletter(w http.ResponseWriter, r *http.Request) {
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var email string
	if isJSON {
		var input struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(w, r, &input); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		email = input.Email
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "could not parse form")
			return
		}
		email = r.FormValue("email")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRX.MatchString(email) {
		if isJSON {
			respondError(w, http.StatusBadRequest, "a valid email address is required")
		} else {
			renderHTML(w, http.StatusBadRequest, templates.UnsubscribeForm(conf.SiteName, email))
		}
		return
	}

	err := database.GetDB().
		Model(&database.Subscriber{}).
		Where("email = ? AND is_active = ?", email, true).
		Update("is_active", false).Error
	if err != nil {
		respondServerError(w, r, "Unsubscribing", err)
		return
	}

	if isJSON {
		respondMessage(w, http.StatusOK, nil, "unsubscribed from the newsletter")
		return
	}
	renderHTML(w, http.StatusOK, templates.UnsubscribeDone(conf.SiteName, email))
}

func listSubscribers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)

	q := database.GetDB().Model(&database.Subscriber{})
	if active := r.URL.Query().Get("active"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondServerError(w, r, "Counting subscribers", err)
		return
	}

	var subs []database.Subscriber
	err := q.Order("subscribed_at DESC").Limit(limit).Offset(offset).Find(&subs).Error
	if err != nil {
		respondServerError(w, r, "Fetching subscribers", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"subscribers": subs,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

func deleteSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub database.Subscriber
	err := database.GetDB().First(&sub, chi.URLParam(r, "subscriberID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "subscriber not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching subscriber", err)
		return
	}

	if err := database.GetDB().Delete(&sub).Error; err != nil {
		respondServerError(w, r, "Deleting subscriber", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "subscriber deleted")
}

func exportSubscribers(w http.ResponseWriter, r *http.Request) {
	var subs []database.Subscriber
	if err := database.GetDB().Order("subscribed_at ASC").Find(&subs).Error; err != nil {
		respondServerError(w, r, "Fetching subscribers", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Subscribers"
	f.SetSheetName("Sheet1", sheet)

	for i, header := range []string{"Email", "Active", "Subscribed At"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for i, sub := range subs {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), sub.Email)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), sub.IsActive)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), sub.SubscribedAt.Format(time.RFC3339))
	}

	filename := fmt.Sprintf("newsletter-subscribers-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := f.Write(w); err != nil {
		slog.Error("Writing subscriber export", "error", err)
	}
}
