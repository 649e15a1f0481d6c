package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/filex"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

// decode reads a JSON body into dst, or, for form submissions, hands the
// parsed form to fromForm. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func(url.Values)) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxJSONBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return common.Validation("invalid form body")
		}
		fromForm(r.PostForm)
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.Validation("request body too large")
		}
		return common.Validation("invalid JSON body")
	}
}

func currentUser(r *http.Request) *models.Profile {
	p, _ := auth.UserFromContext(r.Context())
	return p
}

// stageFile saves the multipart file field to the upload directory. It
// returns "" when the field is absent; the caller removes the file.
func (s *Server) stageFile(r *http.Request, name string) (string, error) {
	f, hdr, err := r.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", common.Validation("invalid " + name + " file")
	}
	defer f.Close()

	path, err := filex.SaveTemp(s.uploadDir, hdr.Filename, f)
	if err != nil {
		return "", common.Internal("internal error", err)
	}
	return path, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.Validation("request body too large")
		}
		return common.Validation("invalid multipart body")
	}
	return nil
}

func removeStaged(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.PingContext(r.Context()); err != nil {
			writeError(w, common.Unavailable("database unavailable", err))
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"}, "ok")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	avatar, err := s.stageFile(r, "avatar")
	if err != nil {
		writeError(w, err)
		return
	}
	cover, err := s.stageFile(r, "coverImage")
	if err != nil {
		removeStaged(avatar)
		writeError(w, err)
		return
	}
	defer removeStaged(avatar, cover)

	profile, err := s.users.Register(r.Context(), services.RegisterInput{
		UserName:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		FullName:       r.FormValue("fullName"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, profile, "User registered successfully")
}

type loginRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *models.Profile `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decode(w, r, &req, func(v url.Values) {
		req = loginRequest{UserName: v.Get("username"), Email: v.Get("email"), Password: v.Get("password")}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.users.Login(r.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setTokenCookies(w, sess.AccessToken, sess.AccessTokenExpiresAt, sess.RefreshToken, sess.RefreshTokenExpiresAt)
	writeData(w, http.StatusOK, loginResponse{
		User:         sess.User,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}, "User logged in successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context(), currentUser(r).ID); err != nil {
		writeError(w, err)
		return
	}

	s.clearTokenCookies(w)
	writeData(w, http.StatusOK, struct{}{}, "User logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		err := decode(w, r, &req, func(v url.Values) { req.RefreshToken = v.Get("refreshToken") })
		if err != nil {
			writeError(w, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.users.RefreshToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setTokenCookies(w, pair.AccessToken, pair.AccessTokenExpiresAt, pair.RefreshToken, pair.RefreshTokenExpiresAt)
	writeData(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "Access token refreshed")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	err := decode(w, r, &req, func(v url.Values) {
		req = changePasswordRequest{OldPassword: v.Get("oldPassword"), NewPassword: v.Get("newPassword")}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.users.ChangePassword(r.Context(), currentUser(r).ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.users.CurrentUser(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile, "Current user fetched successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	err := decode(w, r, &req, func(v url.Values) {
		req = updateAccountRequest{FullName: v.Get("fullName"), Email: v.Get("email")}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := s.users.UpdateAccount(r.Context(), currentUser(r).ID, req.FullName, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile, "Account details updated successfully")
}

// updateImage handles a single-file PATCH for field using update.
func (s *Server) updateImage(w http.ResponseWriter, r *http.Request, field, message string,
	update func(r *http.Request, userID, path string) (*models.Profile, error)) {
	if err := s.parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	path, err := s.stageFile(r, field)
	if err != nil {
		writeError(w, err)
		return
	}
	defer removeStaged(path)

	profile, err := update(r, currentUser(r).ID, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, profile, message)
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	s.updateImage(w, r, "avatar", "Avatar updated successfully",
		func(r *http.Request, id, path string) (*models.Profile, error) {
			return s.users.UpdateAvatar(r.Context(), id, path)
		})
}

func (s *Server) handleUpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	s.updateImage(w, r, "coverImage", "Cover image updated successfully",
		func(r *http.Request, id, path string) (*models.Profile, error) {
			return s.users.UpdateCoverImage(r.Context(), id, path)
		})
}
