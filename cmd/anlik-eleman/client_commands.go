package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anlik-eleman/backend/internal/client"
	"github.com/anlik-eleman/backend/internal/config"
	"github.com/anlik-eleman/backend/internal/dataaccess"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/logging"
	"github.com/anlik-eleman/backend/internal/models"
	"github.com/anlik-eleman/backend/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var errNotSignedIn = errors.New("not signed in")

// clientEnv is one bootstrapped session store backed by the persisted session file.
type clientEnv struct {
	logger *zap.Logger
	facade *dataaccess.Facade
	store  *session.Store
	state  session.State
}

func openClient(ctx context.Context) (*clientEnv, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := appConfig.ValidateClient(); err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logging.Options{
		Level:    appConfig.LogLevel,
		Encoding: appConfig.LogEncoding,
		Service:  clientService,
	})
	if err != nil {
		return nil, err
	}

	platform, err := client.New(client.Config{
		URL:     appConfig.PlatformURL,
		AnonKey: appConfig.AnonKey,
		Storage: client.NewFileStorage(appConfig.SessionFile),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	facade, err := dataaccess.New(dataaccess.Config{
		Client:     platform,
		Translator: i18n.NewTranslator(i18n.ParseLocale(appConfig.Locale)),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(session.Config{
		Auth:       facade,
		Profiles:   facade,
		Translator: facade.Translator(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	state, err := store.Init(ctx)
	if err != nil {
		store.Dispose()
		return nil, err
	}
	return &clientEnv{logger: logger, facade: facade, store: store, state: state}, nil
}

func (e *clientEnv) close() {
	e.store.Dispose()
	e.store.Wait()
	_ = e.logger.Sync()
}

// settledState waits for pending auth events and returns the resulting state.
func (e *clientEnv) settledState(ctx context.Context) (session.State, error) {
	if err := e.store.Settle(ctx); err != nil {
		return session.State{}, err
	}
	return e.store.State(), nil
}

func (e *clientEnv) currentUser() (*models.Identity, error) {
	state := e.store.State()
	if state.User == nil {
		return nil, errNotSignedIn
	}
	return state.User, nil
}

// withClient runs fn against a bootstrapped client and always disposes it.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, env *clientEnv) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return fn(ctx, env)
}

type stateView struct {
	Phase   string           `json:"phase"`
	User    *models.Identity `json:"user,omitempty"`
	Profile *models.Profile  `json:"profile,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func printState(cmd *cobra.Command, state session.State) error {
	return printJSON(cmd, stateView{
		Phase:   state.Phase.String(),
		User:    state.User,
		Profile: state.Profile,
		Error:   state.Error,
	})
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func newSignUpCommand() *cobra.Command {
	var (
		email    string
		password string
		userType string
		attrs    models.SignUpAttributes
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register an account and provision its profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs.UserType = models.ParseUserType(userType)
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				identity, err := env.store.SignUp(ctx, email, password, attrs)
				if err != nil {
					return err
				}
				if !identity.Confirmed() {
					fmt.Fprintf(cmd.ErrOrStderr(), "account %s created, waiting for email confirmation\n", identity.Email)
				}
				state, err := env.settledState(ctx)
				if err != nil {
					return err
				}
				return printState(cmd, state)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&email, "email", "", "Email address")
	flags.StringVar(&password, "password", "", "Password")
	flags.StringVar(&userType, "user-type", string(models.UserTypeJobSeeker), "Account kind (job_seeker, employer)")
	flags.StringVar(&attrs.FirstName, "first-name", "", "First name")
	flags.StringVar(&attrs.LastName, "last-name", "", "Last name")
	flags.StringVar(&attrs.Phone, "phone", "", "Phone number")
	flags.StringVar(&attrs.City, "city", "", "City")
	flags.StringVar(&attrs.CompanyName, "company-name", "", "Company name (employers)")
	flags.StringVar(&attrs.CompanyTitle, "company-title", "", "Your title at the company (employers)")
	flags.StringVar(&attrs.CompanyDescription, "company-description", "", "Company description (employers)")
	flags.StringVar(&attrs.CompanyWebsite, "company-website", "", "Company website (employers)")
	flags.StringVar(&attrs.EmployeeCount, "employee-count", "", "Employee count range (employers)")
	return cmd
}

func newSignInCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and load the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				if _, err := env.store.SignIn(ctx, email, password); err != nil {
					return err
				}
				state, err := env.settledState(ctx)
				if err != nil {
					return err
				}
				return printState(cmd, state)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newSignOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				if err := env.store.SignOut(ctx); err != nil {
					return err
				}
				return printState(cmd, env.store.State())
			})
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the persisted session and show the current user and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				return printState(cmd, env.state)
			})
		},
	}
}

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Read or change the current user's profile",
	}

	var (
		firstName, lastName, phone, city, bio string
		experienceYears                       int
		hourlyRate                            float64
	)
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields; only the flags given are changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update models.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("first-name") {
				update.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				update.LastName = &lastName
			}
			if flags.Changed("phone") {
				update.Phone = &phone
			}
			if flags.Changed("city") {
				update.City = &city
			}
			if flags.Changed("bio") {
				update.Bio = &bio
			}
			if flags.Changed("experience-years") {
				update.ExperienceYears = &experienceYears
			}
			if flags.Changed("hourly-rate") {
				update.HourlyRate = &hourlyRate
			}
			if update.Empty() {
				return errors.New("no profile fields given")
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				profile, err := env.store.UpdateProfile(ctx, update)
				if err != nil {
					return err
				}
				return printJSON(cmd, profile)
			})
		},
	}
	updateCmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	updateCmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	updateCmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	updateCmd.Flags().StringVar(&city, "city", "", "City")
	updateCmd.Flags().StringVar(&bio, "bio", "", "Short biography")
	updateCmd.Flags().IntVar(&experienceYears, "experience-years", 0, "Years of experience")
	updateCmd.Flags().Float64Var(&hourlyRate, "hourly-rate", 0, "Hourly rate")

	companyCmd := &cobra.Command{
		Use:   "companies",
		Short: "List the companies owned by the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				companies, err := env.facade.ListCompanies(ctx, user.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd, companies)
			})
		},
	}

	var companyFields struct {
		name, city, description, website, phone, email, address string
	}
	companyUpdateCmd := &cobra.Command{
		Use:   "company-update <company-id>",
		Short: "Update a company the current user owns; only the flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update models.CompanyUpdate
			changed := false
			for flag, target := range map[string]struct {
				value *string
				field **string
			}{
				"name":        {&companyFields.name, &update.Name},
				"city":        {&companyFields.city, &update.City},
				"description": {&companyFields.description, &update.Description},
				"website":     {&companyFields.website, &update.Website},
				"phone":       {&companyFields.phone, &update.Phone},
				"email":       {&companyFields.email, &update.Email},
				"address":     {&companyFields.address, &update.Address},
			} {
				if cmd.Flags().Changed(flag) {
					*target.field = target.value
					changed = true
				}
			}
			if !changed {
				return errors.New("no company fields given")
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				company, err := env.facade.UpdateCompany(ctx, args[0], update)
				if err != nil {
					return err
				}
				return printJSON(cmd, company)
			})
		},
	}
	companyUpdateCmd.Flags().StringVar(&companyFields.name, "name", "", "Company name")
	companyUpdateCmd.Flags().StringVar(&companyFields.city, "city", "", "City")
	companyUpdateCmd.Flags().StringVar(&companyFields.description, "description", "", "Description")
	companyUpdateCmd.Flags().StringVar(&companyFields.website, "website", "", "Website")
	companyUpdateCmd.Flags().StringVar(&companyFields.phone, "phone", "", "Phone number")
	companyUpdateCmd.Flags().StringVar(&companyFields.email, "email", "", "Contact email")
	companyUpdateCmd.Flags().StringVar(&companyFields.address, "address", "", "Street address")

	profileCmd.AddCommand(updateCmd, companyCmd, companyUpdateCmd)
	return profileCmd
}

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List active job categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				categories, err := env.facade.ListJobCategories(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, categories)
			})
		},
	}
}

func newJobsCommand() *cobra.Command {
	var (
		filter  models.JobFilter
		jobType string
	)
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Browse and bookmark job postings",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active job postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.JobType = models.JobType(jobType)
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				postings, err := env.facade.ListJobPostings(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd, postings)
			})
		},
	}
	listCmd.Flags().StringVar(&filter.City, "city", "", "Only postings in this city")
	listCmd.Flags().StringVar(&filter.CategoryID, "category", "", "Only postings in this category id")
	listCmd.Flags().StringVar(&jobType, "type", "", "Only postings of this job type")
	listCmd.Flags().BoolVar(&filter.RemoteOnly, "remote", false, "Only remote postings")
	listCmd.Flags().Float64Var(&filter.SalaryMin, "salary-min", 0, "Minimum salary")
	listCmd.Flags().IntVar(&filter.Offset, "offset", 0, "Rows to skip")
	listCmd.Flags().IntVar(&filter.Limit, "limit", 0, "Page size")

	saveCmd := &cobra.Command{
		Use:   "save <job-id>",
		Short: "Bookmark a job posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				saved, err := env.facade.SaveJob(ctx, user.ID, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, saved)
			})
		},
	}
	savedCmd := &cobra.Command{
		Use:   "saved",
		Short: "List bookmarked job postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				saved, err := env.facade.ListSavedJobs(ctx, user.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd, saved)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				posting, err := env.facade.GetJobPosting(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, posting)
			})
		},
	}

	var (
		draft      models.JobPosting
		draftType  string
		salaryMin  float64
		salaryMax  float64
		categoryID string
		companyID  string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Post a job as the current employer; it waits for admin approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("salary-min") {
				draft.SalaryMin = &salaryMin
			}
			if flags.Changed("salary-max") {
				draft.SalaryMax = &salaryMax
			}
			if categoryID != "" {
				draft.CategoryID = &categoryID
			}
			if companyID != "" {
				draft.CompanyID = &companyID
			}
			draft.JobType = models.JobType(draftType)
			draft.Status = models.JobStatusPending
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				draft.EmployerID = user.ID
				posting, err := env.facade.InsertJobPosting(ctx, draft)
				if err != nil {
					return err
				}
				return printJSON(cmd, posting)
			})
		},
	}
	createCmd.Flags().StringVar(&draft.Title, "title", "", "Posting title")
	createCmd.Flags().StringVar(&draft.Description, "description", "", "What the job involves")
	createCmd.Flags().StringVar(&draft.City, "city", "", "City of the job")
	createCmd.Flags().StringVar(&draftType, "type", string(models.JobTypePartTime), "Job type (full_time, part_time, contract, temporary)")
	createCmd.Flags().StringVar(&categoryID, "category", "", "Category id")
	createCmd.Flags().StringVar(&companyID, "company", "", "Company id")
	createCmd.Flags().Float64Var(&salaryMin, "salary-min", 0, "Lowest offered salary")
	createCmd.Flags().Float64Var(&salaryMax, "salary-max", 0, "Highest offered salary")
	createCmd.Flags().BoolVar(&draft.IsRemote, "remote", false, "The job can be done remotely")
	createCmd.Flags().BoolVar(&draft.IsUrgent, "urgent", false, "Mark the posting urgent")
	createCmd.Flags().StringSliceVar(&draft.Requirements, "requirement", nil, "A requirement (repeatable)")
	createCmd.Flags().StringSliceVar(&draft.Benefits, "benefit", nil, "A benefit (repeatable)")

	deleteCmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete one of the current employer's postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				return env.facade.DeleteJobPosting(ctx, args[0])
			})
		},
	}
	unsaveCmd := &cobra.Command{
		Use:   "unsave <job-id>",
		Short: "Remove a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				return env.facade.UnsaveJob(ctx, user.ID, args[0])
			})
		},
	}

	var coverLetter, resumeURL string
	applyCmd := &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Apply to a job posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row := models.ApplicationInsert{JobID: args[0]}
			if coverLetter != "" {
				row.CoverLetter = &coverLetter
			}
			if resumeURL != "" {
				row.ResumeURL = &resumeURL
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				row.ApplicantID = user.ID
				application, err := env.facade.ApplyToJob(ctx, row)
				if err != nil {
					return err
				}
				return printJSON(cmd, application)
			})
		},
	}
	applyCmd.Flags().StringVar(&coverLetter, "cover-letter", "", "Cover letter")
	applyCmd.Flags().StringVar(&resumeURL, "resume-url", "", "Link to a resume")

	jobsCmd.AddCommand(listCmd, showCmd, createCmd, deleteCmd, saveCmd, unsaveCmd, savedCmd, applyCmd)
	return jobsCmd
}

func newNotificationsCommand() *cobra.Command {
	var (
		limit     int
		markRead  bool
		countOnly bool
	)
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List the current user's notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				if countOnly {
					unread, err := env.facade.UnreadNotificationCount(ctx, user.ID)
					if err != nil {
						return err
					}
					return printJSON(cmd, map[string]int{"unread": unread})
				}
				notifications, err := env.facade.ListNotifications(ctx, user.ID, limit)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, notifications); err != nil {
					return err
				}
				if !markRead {
					return nil
				}
				return env.facade.MarkNotificationsRead(ctx, user.ID, nil)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum notifications to show")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark every unread notification as read afterwards")
	cmd.Flags().BoolVar(&countOnly, "count", false, "Only print how many notifications are unread")
	return cmd
}

func newAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Back-office operations for admin accounts",
	}
	var revoke bool
	approveCmd := &cobra.Command{
		Use:   "approve <profile-id>",
		Short: "Approve an employer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				if env.state.Profile == nil || env.state.Profile.UserType != models.UserTypeAdmin {
					return errAdminRequired
				}
				profile, err := env.facade.SetProfileApproval(ctx, args[0], !revoke)
				if err != nil {
					return err
				}
				return printJSON(cmd, profile)
			})
		},
	}
	approveCmd.Flags().BoolVar(&revoke, "revoke", false, "Withdraw the approval instead")
	adminCmd.AddCommand(approveCmd)
	return adminCmd
}
