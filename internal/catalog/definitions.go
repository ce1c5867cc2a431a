package catalog

import (
	"devsetup/internal/config"
	"devsetup/internal/installer"
)

func aptPackages(packages []string, services ...string) func(Definition, config.Config) installer.Installer {
	return func(def Definition, _ config.Config) installer.Installer {
		return &installer.Apt{Component: def.Name, Packages: packages, Services: services, Detector: def.Detector}
	}
}

var definitions = []Definition{
	{
		Name:        "base",
		Description: "build tools and everyday command line utilities",
		Tier:        TierMinimal,
		Removal:     "sudo apt-get remove build-essential jq htop tmux",
		build: aptPackages([]string{
			"build-essential", "curl", "wget", "ca-certificates", "gnupg",
			"unzip", "xz-utils", "jq", "htop", "tmux",
		}),
	},
	{
		Name:        "git",
		Description: "Git version control",
		Tier:        TierMinimal,
		Removal:     "sudo apt-get remove git",
		Detector:    installer.Detector{Command: "git"},
		build:       aptPackages([]string{"git"}),
	},
	{
		Name:        "git-config",
		Description: "global Git defaults",
		Tier:        TierMinimal,
		Requires:    "git",
		Removal:     "git config --global --unset init.defaultBranch (likewise pull.rebase, core.autocrlf)",
		Detector:    gitSetting("init.defaultBranch", "main"),
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Commands{
				Component: def.Name,
				Steps: []installer.Command{
					installer.Cmd("git", "config", "--global", "init.defaultBranch", "main"),
					installer.Cmd("git", "config", "--global", "pull.rebase", "false"),
					installer.Cmd("git", "config", "--global", "core.autocrlf", "input"),
				},
				Version:  "configured",
				Detector: def.Detector,
			}
		},
	},
	{
		Name:        "python",
		Description: "Python 3 with venv and pip",
		Tier:        TierMinimal,
		Removal:     "sudo apt-get remove python3-venv python3-pip python3-dev",
		Detector:    installer.Detector{Command: "python3"},
		build:       aptPackages([]string{"python3", "python3-venv", "python3-pip", "python3-dev"}),
	},
	{
		Name:        "pipx",
		Description: "isolated Python application installer",
		Tier:        TierDeveloper,
		Requires:    "python",
		Removal:     "sudo apt-get remove pipx",
		Detector:    installer.Detector{Command: "pipx"},
		build:       aptPackages([]string{"pipx"}),
	},
	{
		Name:        "zsh",
		Description: "Z shell",
		Tier:        TierDeveloper,
		Removal:     "sudo apt-get remove zsh",
		Detector:    installer.Detector{Command: "zsh"},
		build:       aptPackages([]string{"zsh"}),
	},
	{
		Name:        "oh-my-zsh",
		Description: "Oh My Zsh configuration framework",
		Tier:        TierDeveloper,
		Requires:    "zsh",
		Removal:     "rm -rf ~/.oh-my-zsh and restore ~/.zshrc from ~/.zshrc.pre-oh-my-zsh",
		Detector:    installer.Detector{Path: "~/.oh-my-zsh"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Script{
				Component: def.Name,
				URL:       "https://raw.githubusercontent.com/ohmyzsh/ohmyzsh/master/tools/install.sh",
				Args:      []string{"--unattended"},
				Env:       []string{"RUNZSH=no", "CHSH=no", "KEEP_ZSHRC=yes"},
				Detector:  def.Detector,
			}
		},
	},
	{
		Name:        "nodejs",
		Description: "Node.js runtime and npm",
		Tier:        TierDeveloper,
		Removal:     "rm -rf ~/.local/opt/node ~/.local/bin/node ~/.local/bin/npm ~/.local/bin/npx",
		Detector:    installer.Detector{Command: "node"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://nodejs.org/dist/v{version}/node-v{version}-linux-{arch}.tar.xz",
				ChecksumURL:    "https://nodejs.org/dist/v{version}/SHASUMS256.txt",
				DefaultVersion: "20.15.1",
				ArchNames:      map[string]string{"amd64": "x64", "arm64": "arm64"},
				Archive:        installer.ArchiveTarXz,
				Tree:           "node",
				Binaries:       []string{"bin/node", "bin/npm", "bin/npx"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "yarn",
		Description: "Yarn package manager",
		Tier:        TierDeveloper,
		Requires:    "nodejs",
		Removal:     "npm uninstall -g --prefix ~/.local yarn",
		Detector:    installer.Detector{Command: "yarn"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Commands{
				Component: def.Name,
				Steps:     []installer.Command{installer.Cmd("npm", "install", "-g", "--prefix", "{prefix}", "yarn")},
				Detector:  def.Detector,
			}
		},
	},
	{
		Name:        "golang",
		Description: "Go toolchain",
		Tier:        TierDeveloper,
		Removal:     "rm -rf ~/.local/opt/go ~/.local/bin/go ~/.local/bin/gofmt",
		Detector:    installer.Detector{Command: "go", VersionArgs: []string{"version"}},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://dl.google.com/go/go{version}.linux-{goarch}.tar.gz",
				ChecksumURL:    "https://dl.google.com/go/go{version}.linux-{goarch}.tar.gz.sha256",
				DefaultVersion: "1.22.5",
				Archive:        installer.ArchiveTarGz,
				Tree:           "go",
				Binaries:       []string{"bin/go", "bin/gofmt"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "rust",
		Description: "Rust toolchain via rustup",
		Tier:        TierFull,
		Removal:     "rustup self uninstall",
		Detector:    installer.Detector{Command: "rustc"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Script{
				Component: def.Name,
				URL:       "https://static.rust-lang.org/rustup/rustup-init.sh",
				Args:      []string{"-y", "--no-modify-path", "--profile", "minimal"},
				Detector:  def.Detector,
			}
		},
	},
	{
		Name:        "docker",
		Description: "Docker Engine from the Docker apt repository",
		Tier:        TierDeveloper,
		Removal:     "sudo apt-get remove docker-ce docker-ce-cli containerd.io && sudo rm /etc/apt/sources.list.d/docker.list",
		Detector:    installer.Detector{Command: "docker"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Apt{
				Component: def.Name,
				Packages:  []string{"docker-ce", "docker-ce-cli", "containerd.io", "docker-buildx-plugin"},
				Repo: &installer.AptRepo{
					KeyURL:   "https://download.docker.com/linux/{distro}/gpg",
					Keyring:  "/etc/apt/keyrings/docker.asc",
					Source:   "deb [arch={debarch} signed-by={keyring}] https://download.docker.com/linux/{distro} {codename} stable",
					ListFile: "/etc/apt/sources.list.d/docker.list",
				},
				Services: []string{"docker"},
				After:    []installer.Command{installer.Sudo("usermod", "-aG", "docker", "{user}")},
				Detector: def.Detector,
			}
		},
	},
	{
		Name:        "docker-compose",
		Description: "standalone docker-compose binary",
		Tier:        TierDeveloper,
		Requires:    "docker",
		Removal:     "rm ~/.local/bin/docker-compose",
		Detector:    installer.Detector{Command: "docker-compose", VersionArgs: []string{"version", "--short"}},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://github.com/docker/compose/releases/download/v{version}/docker-compose-linux-{arch}",
				ChecksumURL:    "https://github.com/docker/compose/releases/download/v{version}/docker-compose-linux-{arch}.sha256",
				DefaultVersion: "2.29.1",
				LatestRepo:     "docker/compose",
				Binaries:       []string{"docker-compose"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "vscode",
		Description: "Visual Studio Code from the Microsoft apt repository",
		Tier:        TierDeveloper,
		Removal:     "sudo apt-get remove code && sudo rm /etc/apt/sources.list.d/vscode.list",
		Detector:    installer.Detector{Command: "code"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Apt{
				Component: def.Name,
				Packages:  []string{"code"},
				Repo: &installer.AptRepo{
					KeyURL:   "https://packages.microsoft.com/keys/microsoft.asc",
					Keyring:  "/etc/apt/keyrings/packages.microsoft.asc",
					Source:   "deb [arch={debarch} signed-by={keyring}] https://packages.microsoft.com/repos/code stable main",
					ListFile: "/etc/apt/sources.list.d/vscode.list",
				},
				Detector: def.Detector,
			}
		},
	},
	{
		Name:        "kubectl",
		Description: "Kubernetes command line client",
		Tier:        TierDeveloper,
		Removal:     "rm ~/.local/bin/kubectl",
		Detector:    installer.Detector{Command: "kubectl", VersionArgs: []string{"version", "--client"}},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://dl.k8s.io/release/v{version}/bin/linux/{goarch}/kubectl",
				ChecksumURL:    "https://dl.k8s.io/release/v{version}/bin/linux/{goarch}/kubectl.sha256",
				DefaultVersion: "1.30.3",
				LatestRepo:     "kubernetes/kubernetes",
				Binaries:       []string{"kubectl"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "helm",
		Description: "Kubernetes package manager",
		Tier:        TierDeveloper,
		Requires:    "kubectl",
		Removal:     "rm ~/.local/bin/helm",
		Detector:    installer.Detector{Command: "helm", VersionArgs: []string{"version", "--short"}},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://get.helm.sh/helm-v{version}-linux-{goarch}.tar.gz",
				ChecksumURL:    "https://get.helm.sh/helm-v{version}-linux-{goarch}.tar.gz.sha256sum",
				DefaultVersion: "3.15.3",
				LatestRepo:     "helm/helm",
				Archive:        installer.ArchiveTarGz,
				Binaries:       []string{"helm"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "terraform",
		Description: "HashiCorp Terraform",
		Tier:        TierFull,
		Removal:     "rm ~/.local/bin/terraform",
		Detector:    installer.Detector{Command: "terraform", VersionArgs: []string{"version"}},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://releases.hashicorp.com/terraform/{version}/terraform_{version}_linux_{goarch}.zip",
				ChecksumURL:    "https://releases.hashicorp.com/terraform/{version}/terraform_{version}_SHA256SUMS",
				DefaultVersion: "1.9.2",
				LatestRepo:     "hashicorp/terraform",
				Archive:        installer.ArchiveZip,
				Binaries:       []string{"terraform"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "awscli",
		Description: "AWS command line interface v2",
		Tier:        TierFull,
		Removal:     "rm -rf ~/.local/opt/aws-cli ~/.local/bin/aws ~/.local/bin/aws_completer",
		Detector:    installer.Detector{Command: "aws"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Download{
				Component:      def.Name,
				URL:            "https://awscli.amazonaws.com/awscli-exe-linux-{arch}.zip",
				DefaultVersion: "latest",
				Archive:        installer.ArchiveZip,
				Setup:          []string{"./aws/install", "--update", "-i", "{opt}/aws-cli", "-b", "{bin}"},
				Binaries:       []string{"aws"},
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "azure-cli",
		Description: "Azure command line interface",
		Tier:        TierFull,
		Removal:     "sudo apt-get remove azure-cli && sudo rm /etc/apt/sources.list.d/azure-cli.sources",
		Detector:    installer.Detector{Command: "az"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Script{
				Component:  def.Name,
				URL:        "https://aka.ms/InstallAzureCLIDeb",
				Shell:      "bash",
				Privileged: true,
				Detector:   def.Detector,
			}
		},
	},
	{
		Name:        "postgresql",
		Description: "PostgreSQL server",
		Tier:        TierFull,
		Removal:     "sudo apt-get remove postgresql postgresql-contrib",
		Detector:    installer.Detector{Command: "psql"},
		build:       aptPackages([]string{"postgresql", "postgresql-contrib"}, "postgresql"),
	},
	{
		Name:        "mariadb",
		Description: "MariaDB server",
		Tier:        TierFull,
		Removal:     "sudo apt-get remove mariadb-server mariadb-client",
		Detector:    installer.Detector{Command: "mariadb"},
		build:       aptPackages([]string{"mariadb-server", "mariadb-client"}, "mariadb"),
	},
	{
		Name:        "redis",
		Description: "Redis server",
		Tier:        TierFull,
		Removal:     "sudo apt-get remove redis-server",
		Detector:    installer.Detector{Command: "redis-server"},
		build:       aptPackages([]string{"redis-server"}, "redis-server"),
	},
	{
		Name:        "dbeaver",
		Description: "DBeaver database client",
		Tier:        TierFull,
		Removal:     "sudo apt-get remove dbeaver-ce",
		Detector:    installer.Detector{Command: "dbeaver"},
		build: func(def Definition, _ config.Config) installer.Installer {
			return &installer.Deb{
				Component:      def.Name,
				URL:            "https://dbeaver.io/files/{version}/dbeaver-ce_{version}_{debarch}.deb",
				DefaultVersion: "24.1.2",
				Package:        "dbeaver-ce",
				Detector:       def.Detector,
			}
		},
	},
	{
		Name:        "firewall",
		Description: "ufw with the configured services allowed",
		Tier:        TierFull,
		Removal:     "sudo ufw disable",
		build: func(_ Definition, cfg config.Config) installer.Installer {
			return &installer.Firewall{Allow: cfg.Tweaks.FirewallAllow}
		},
	},
	{
		Name:        "swappiness",
		Description: "persistent vm.swappiness setting",
		Tier:        TierDeveloper,
		Removal:     "sudo rm " + installer.SysctlConf + " && sudo sysctl --system",
		build: func(_ Definition, cfg config.Config) installer.Installer {
			return &installer.Swappiness{Value: cfg.Tweaks.SwappinessValue()}
		},
	},
	{
		Name:        "shell-config",
		Description: "aliases and PATH entries in the shell rc file",
		Tier:        TierDeveloper,
		Removal:     "restore the rc file from the backups directory or delete the devsetup block",
		build: func(_ Definition, cfg config.Config) installer.Installer {
			return &installer.ShellConfig{
				RCFile:   cfg.Tweaks.ShellRC,
				Aliases:  cfg.Tweaks.ShellAliases,
				PathDirs: []string{"{bin}", "{home}/.cargo/bin"},
			}
		},
	},
}
