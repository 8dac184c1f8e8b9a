package user

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
)

var NowFunc = time.Now // mockable

type Service struct {
	store      docstore.Store
	mailSvc    core.EmailService
	superAdmin core.SuperAdminConfig
}

func NewService(store docstore.Store, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		store:      store,
		mailSvc:    mailSvc,
		superAdmin: conf.SuperAdmin,
	}
}

func (svc *Service) isSuperAdmin(identifier, secret string) bool {
	if identifier != svc.superAdmin.Email {
		return false
	}
	if svc.superAdmin.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(svc.superAdmin.PasswordHash), []byte(secret)) == nil
	}
	return svc.superAdmin.Password != "" && secret == svc.superAdmin.Password
}

func (svc *Service) superAdminIdentity(secret string) Identity {
	return Identity{
		UID:         SuperAdminUID,
		DisplayName: superAdminFirstName + " " + superAdminLastName,
		Email:       svc.superAdmin.Email,
		Role:        RoleAdmin,
		Secret:      secret,
	}
}

// Login resolves an identity from the credentials a user typed.
// An empty claimedRole skips the role check.
// Secrets are compared verbatim against the stored profile password.
func (svc *Service) Login(ctx context.Context, identifier, secret string, claimedRole Role) (Identity, error) {
	authErr := func(err error) error {
		return &AuthError{Identifier: identifier, ClaimedRole: claimedRole, Err: err}
	}

	if svc.isSuperAdmin(identifier, secret) {
		return svc.superAdminIdentity(secret), nil
	}

	prof, err := svc.GetByLoginID(ctx, identifier)
	if err != nil {
		return Identity{}, authErr(err)
	}
	if claimedRole != "" && prof.Role != claimedRole {
		return Identity{}, authErr(ErrRoleMismatch)
	}
	if prof.Password != secret {
		return Identity{}, authErr(ErrInvalidCredential)
	}

	ident := prof.Identity()
	ident.Secret = secret
	return ident, nil
}

func decodeProfile(doc docstore.Document) (Profile, error) {
	var prof Profile
	if err := docstore.Decode(doc, &prof); err != nil {
		return Profile{}, err
	}
	return prof, nil
}

// GetByLoginID returns the first profile whose login id equals id.
func (svc *Service) GetByLoginID(ctx context.Context, id string) (Profile, error) {
	docs, err := svc.store.List(ctx, docstore.Users, docstore.Where("id", docstore.OpEqual, id).WithLimit(1))
	if err != nil {
		return Profile{}, errors.Wrap(err, "looking up profile")
	}
	if len(docs) == 0 {
		return Profile{}, ErrNotFound
	}
	return decodeProfile(docs[0])
}

func (svc *Service) GetByUID(ctx context.Context, uid string) (Profile, error) {
	doc, err := svc.store.Get(ctx, docstore.Users, uid)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	return decodeProfile(doc)
}

// FindIdentity resolves the identity of the profile stored under uid.
func (svc *Service) FindIdentity(ctx context.Context, uid string) (Identity, error) {
	prof, err := svc.GetByUID(ctx, uid)
	if err != nil {
		return Identity{}, err
	}
	return prof.Identity(), nil
}

func (svc *Service) checkUniqueness(ctx context.Context, loginID string) error {
	_, err := svc.GetByLoginID(ctx, loginID)
	switch {
	case err == nil || loginID == svc.superAdmin.Email:
		return core.NewValidationError(ErrLoginIDExists, core.FieldError{Field: "id", Error: ErrLoginIDExists.Error()})
	case errors.Cause(err) == ErrNotFound:
		return nil
	}
	return err
}

// Create validates np and stores it under its login id.
func (svc *Service) Create(ctx context.Context, np NewProfile) (Profile, error) {
	np.clean()
	if err := core.Validate.Struct(np); err != nil {
		return Profile{}, err
	}
	if err := svc.checkUniqueness(ctx, np.LoginID); err != nil {
		return Profile{}, err
	}

	prof := Profile{
		LoginID:   np.LoginID,
		FirstName: np.FirstName,
		LastName:  np.LastName,
		Email:     np.Email,
		Role:      np.Role,
		Password:  np.Password,
		CreatedAt: NowFunc().UTC(),
	}
	doc, err := svc.store.Create(ctx, docstore.Users, prof.LoginID, docstore.Encode(prof))
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating profile")
	}
	prof.UID = doc.ID

	svc.sendAccountCreatedMail(prof)
	return prof, nil
}

func (svc *Service) sendAccountCreatedMail(prof Profile) {
	if svc.mailSvc == nil || prof.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: prof.DisplayName(), Address: prof.Email}},
		Subject:      "Your account has been created",
		TemplateName: "account_created",
		TemplateData: map[string]interface{}{
			"DisplayName": prof.DisplayName(),
			"Role":        prof.Role,
			"LoginID":     prof.LoginID,
		},
	})
}

// Filter lists profiles sorted by login id.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Profile, error) {
	filter.Clean()
	q := docstore.Query{}
	if filter.Role != "" {
		q = q.Where("role", docstore.OpEqual, string(filter.Role))
	}
	docs, err := svc.store.List(ctx, docstore.Users, q)
	if err != nil {
		return nil, errors.Wrap(err, "listing profiles")
	}

	profs := make([]Profile, 0, len(docs))
	for _, doc := range docs {
		prof, err := decodeProfile(doc)
		if err != nil {
			continue // malformed profiles cannot log in either
		}
		if filter.match(prof) {
			profs = append(profs, prof)
		}
	}
	sort.Slice(profs, func(i, j int) bool { return profs[i].LoginID < profs[j].LoginID })
	return profs, nil
}

func (svc *Service) Update(ctx context.Context, uid string, up UpdateProfile) (Profile, error) {
	prof, err := svc.GetByUID(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	up.clean(prof)
	if err := core.Validate.Struct(up); err != nil {
		return Profile{}, err
	}

	prof.FirstName = up.FirstName
	prof.LastName = up.LastName
	prof.Email = up.Email
	prof.Role = up.Role
	fields := docstore.Fields{
		"firstname": prof.FirstName,
		"lastname":  prof.LastName,
		"email":     prof.Email,
		"role":      string(prof.Role),
	}
	if up.Password != "" {
		prof.Password = up.Password
		fields["password"] = up.Password
	}
	if err := svc.store.Update(ctx, docstore.Users, uid, fields); err != nil {
		if docstore.IsNotFound(err) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	return prof, nil
}

// SetPassword replaces a profile's secret without applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, uid, pwd string) error {
	if err := svc.store.Update(ctx, docstore.Users, uid, docstore.Fields{"password": pwd}); err != nil {
		if docstore.IsNotFound(err) {
			return ErrNotFound
		}
		return errors.Wrap(err, "setting password")
	}
	return nil
}

func (svc *Service) Delete(ctx context.Context, uids ...string) error {
	for _, uid := range uids {
		if err := svc.store.Delete(ctx, docstore.Users, uid); err != nil {
			return errors.Wrapf(err, "deleting profile %s", uid)
		}
	}
	return nil
}
